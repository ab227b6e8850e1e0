// Package minify compresses an assembled bundle with esbuild.
package minify

import (
	"errors"
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
)

// Options configures the minifier.
type Options struct {
	// Target is the language level of the output; defaults to ES2015.
	Target api.Target
	// KeepNames preserves function and class names.
	KeepNames bool
}

// Minify returns code with whitespace, syntax and local identifiers
// minified. Every esbuild error is joined into the returned error.
func Minify(code string, opts Options) (string, error) {
	target := opts.Target
	if target == api.DefaultTarget {
		target = api.ES2015
	}

	result := api.Transform(code, api.TransformOptions{
		Loader:            api.LoaderJS,
		Target:            target,
		Platform:          api.PlatformNeutral,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		KeepNames:         opts.KeepNames,
		LegalComments:     api.LegalCommentsNone,
	})

	if len(result.Errors) > 0 {
		errs := make([]error, len(result.Errors))
		for i, message := range result.Errors {
			errs[i] = formatMessage(message)
		}
		return "", fmt.Errorf("minify failed: %w", errors.Join(errs...))
	}
	return string(result.Code), nil
}

func formatMessage(m api.Message) error {
	if m.Location == nil {
		return errors.New(m.Text)
	}
	return fmt.Errorf("%d:%d: %s", m.Location.Line, m.Location.Column, m.Text)
}
