package bundler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fluxbase-eu/jsbundle/internal/observability"
	"github.com/fluxbase-eu/jsbundle/internal/storage"
)

// ErrNoStore is returned by Write when the Bundler has no artifact store.
var ErrNoStore = errors.New("no artifact store configured")

const contentTypeJS = "text/javascript; charset=utf-8"

// Write stores the artifacts of result under outName: <outName>.js, plus
// <outName>.min.js when a minified bundle exists and <outName>.meta.json
// when the build asked for a metafile.
func (b *Bundler) Write(ctx context.Context, result *Result, outName string) ([]*storage.Object, error) {
	if b.store == nil {
		return nil, ErrNoStore
	}
	outName = strings.TrimSuffix(outName, ".js")

	type artifact struct {
		key         string
		data        []byte
		contentType string
	}
	artifacts := []artifact{{outName + ".js", []byte(result.Code), contentTypeJS}}
	if result.Minified != "" {
		artifacts = append(artifacts, artifact{outName + ".min.js", []byte(result.Minified), contentTypeJS})
	}
	if result.metafile {
		data, err := json.MarshalIndent(result.Metafile(outName+".js"), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode metafile: %w", err)
		}
		artifacts = append(artifacts, artifact{outName + ".meta.json", append(data, '\n'), "application/json"})
	}

	provider := "store"
	if named, ok := b.store.(interface{ Name() string }); ok {
		provider = named.Name()
	}

	objects := make([]*storage.Object, 0, len(artifacts))
	err := b.stage(ctx, "write", func(ctx context.Context) error {
		for _, a := range artifacts {
			obj, err := b.store.Put(ctx, a.key, bytes.NewReader(a.data), int64(len(a.data)), &storage.UploadOptions{
				ContentType: a.contentType,
				Metadata:    map[string]string{"build-id": result.BuildID},
			})
			b.metrics.RecordStorageOperation("put", provider, int64(len(a.data)), err)
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", a.key, err)
			}
			observability.AddSpanEvent(ctx, "artifact.written",
				attribute.String("key", obj.Key), attribute.Int64("size", obj.Size))
			objects = append(objects, obj)
		}
		observability.SetSpanAttributes(ctx, attribute.Int("bundle.artifacts", len(objects)))
		return nil
	})
	if err != nil {
		return objects, err
	}

	for _, obj := range objects {
		log.Info().
			Str("build_id", result.BuildID).
			Str("location", obj.Location).
			Int64("bytes", obj.Size).
			Msg("Artifact written")
	}
	return objects, nil
}
