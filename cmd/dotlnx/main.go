// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

package main

import (
	"os"

	"github.com/nivekxyz/dotlnx/cmd/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
