package main

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/brewline/internal/app"
)

// main runs the API with the in-process worker; fx handles signals and shutdown.
func main() {
	fx.New(app.Module).Run()
}
