package folio

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// editorCommand picks the editor from VISUAL or EDITOR, which may carry
// arguments such as "code --wait", falling back to common terminal editors.
func editorCommand() ([]string, error) {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if fields := strings.Fields(os.Getenv(env)); len(fields) > 0 {
			return fields, nil
		}
	}

	for _, e := range []string{"nano", "vim", "vi", "emacs", "notepad"} {
		if _, err := exec.LookPath(e); err == nil {
			return []string{e}, nil
		}
	}
	return nil, fmt.Errorf("no editor found. Please set the EDITOR environment variable")
}

func openInEditor(path string) error {
	editor, err := editorCommand()
	if err != nil {
		return err
	}

	cmd := exec.Command(editor[0], append(editor[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
