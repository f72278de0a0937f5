// Command safeclick-gen generates typed payload structs from prompt manifests.
//
// Usage:
//
//	//go:generate go run ../cmd/safeclick-gen -dir . -out payload_gen.go -pkg prompts
//
// Each base manifest "name.yaml" yields a NamePrompt constant and a NamePayload struct whose
// fields carry `prompt:"var"` tags for every template variable. Manifests tagged "chat" also
// get a History field spliced after the system messages.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "safeclick-gen:", err)
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	flags := flag.NewFlagSet("safeclick-gen", flag.ContinueOnError)
	flags.SetOutput(stderr)
	dir := flags.String("dir", ".", "directory holding the manifests")
	out := flags.String("out", "payload_gen.go", "output file, relative to -dir")
	pkg := flags.String("pkg", "", "package name of the generated file (default: base name of -dir)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	abs, err := filepath.Abs(*dir)
	if err != nil {
		return err
	}
	if *pkg == "" {
		*pkg = filepath.Base(abs)
	}
	specs, err := loadSpecs(os.DirFS(abs))
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return errors.New("no manifests found in " + abs)
	}
	return render(*pkg, specs).Save(filepath.Join(abs, *out))
}
