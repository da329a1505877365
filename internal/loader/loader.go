// Package loader reads funnel and price catalog documents from YAML or JSON
// files, validates them against embedded JSON Schemas and decodes them into
// model types.
package loader

import (
	"bytes"
	"embed"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/funnel-readiness/internal/model"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBase = "https://funnel-readiness.local/schemas/"

// Document kinds, named after their schema files.
const (
	KindFunnel = "funnel"
	KindPrices = "prices"
)

var (
	compileOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	compileErr  error
)

func compiled() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		out := make(map[string]*jsonschema.Schema, 2)
		for _, kind := range []string{KindFunnel, KindPrices} {
			name := kind + ".schema.json"
			raw, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				compileErr = eris.Wrapf(err, "loader: read schema %s", name)
				return
			}
			if err := c.AddResource(schemaBase+name, bytes.NewReader(raw)); err != nil {
				compileErr = eris.Wrapf(err, "loader: add schema %s", name)
				return
			}
		}
		for _, kind := range []string{KindFunnel, KindPrices} {
			s, err := c.Compile(schemaBase + kind + ".schema.json")
			if err != nil {
				compileErr = eris.Wrapf(err, "loader: compile schema %s", kind)
				return
			}
			out[kind] = s
		}
		schemas = out
	})
	return schemas, compileErr
}

// Catalog is the on-disk shape of a price catalog.
type Catalog struct {
	Prices []model.Price `json:"prices"`
}

// LoadFunnel reads and validates a funnel document.
func LoadFunnel(path string) (*model.Funnel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read %s", path)
	}
	var f model.Funnel
	if err := Decode(KindFunnel, data, isYAML(path), &f); err != nil {
		return nil, eris.Wrapf(err, "loader: %s", path)
	}
	return &f, nil
}

// LoadPrices reads and validates a price catalog document.
func LoadPrices(path string) ([]model.Price, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read %s", path)
	}
	var c Catalog
	if err := Decode(KindPrices, data, isYAML(path), &c); err != nil {
		return nil, eris.Wrapf(err, "loader: %s", path)
	}
	return c.Prices, nil
}

// Decode validates data against the schema of kind and unmarshals it into
// out. YAML input is converted to JSON first.
func Decode(kind string, data []byte, yamlInput bool, out any) error {
	if yamlInput {
		var err error
		if data, err = yamlToJSON(data); err != nil {
			return err
		}
	}

	all, err := compiled()
	if err != nil {
		return err
	}
	schema, ok := all[kind]
	if !ok {
		return eris.Errorf("loader: unknown document kind %q", kind)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return eris.Wrap(err, "loader: parse json")
	}
	if err := schema.Validate(doc); err != nil {
		return eris.Wrapf(err, "loader: invalid %s document", kind)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrapf(err, "loader: decode %s document", kind)
	}
	return nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "loader: parse yaml")
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, eris.Wrap(err, "loader: convert yaml to json")
	}
	return out, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
