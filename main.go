package main

import (
	"fmt"
	"os"

	"github.com/schardosin/folio/cmd/folio"
	"github.com/schardosin/folio/pkg/ui"
)

func main() {
	if err := folio.Execute(); err != nil {
		fmt.Fprint(os.Stderr, ui.RenderError(err))
		os.Exit(1)
	}
}
