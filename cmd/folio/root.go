package folio

import (
	"fmt"
	"os"
)

// Execute is the main entry point for the CLI
func Execute() error {
	return execute(os.Args[1:])
}

func execute(args []string) error {
	if len(args) < 1 || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		if len(args) < 1 {
			return fmt.Errorf("no command provided")
		}
		return nil
	}

	command := args[0]
	switch command {
	case "serve":
		return handleServeCommand(args[1:])
	case "chat":
		return handleChatCommand(args[1:])
	case "leads":
		return handleLeadsCommand(args[1:])
	case "models":
		return handleModelsCommand(args[1:])
	case "setup":
		return handleSetupCommand()
	case "config":
		return handleConfigCommand(args[1:])
	case "version", "-v", "--version":
		printVersion()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage() {
	fmt.Println("usage: folio [-h] {serve,chat,leads,models,setup,config,version} ...")
	fmt.Println("")
	fmt.Println("positional arguments:")
	fmt.Println("  {serve,chat,leads,models,setup,config,version}")
	fmt.Println("                        folio CLI commands")
	fmt.Println("    serve               Run the chat relay and lead capture server")
	fmt.Println("    chat                Chat with the portfolio assistant")
	fmt.Println("    leads               Review captured consultation requests")
	fmt.Println("    models              List models offered by a provider")
	fmt.Println("    setup               Run interactive setup")
	fmt.Println("    config              Manage configuration")
	fmt.Println("    version             Show version information")
	fmt.Println("")
	fmt.Println("options:")
	fmt.Println("  -h, --help            show this help message and exit")
}
