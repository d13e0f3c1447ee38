package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"gopkg.in/yaml.v3"
)

// Input files are YAML, which also accepts JSON. Records are plain documents
// converted with attributevalue, so {"age": 3} becomes {"age": {"N": "3"}}.

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func loadItem(path string) (map[string]types.AttributeValue, error) {
	if path == "" {
		return map[string]types.AttributeValue{}, nil
	}
	var doc map[string]any
	if err := readYAML(path, &doc); err != nil {
		return nil, err
	}
	return attributevalue.MarshalMap(doc)
}

func loadItems(path string) ([]map[string]types.AttributeValue, error) {
	var docs []map[string]any
	if err := readYAML(path, &docs); err != nil {
		return nil, err
	}
	items := make([]map[string]types.AttributeValue, 0, len(docs))
	for i, doc := range docs {
		item, err := attributevalue.MarshalMap(doc)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// loadNames returns nil when no file is given, so a #name placeholder
// reports the missing map.
func loadNames(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	var names map[string]string
	if err := readYAML(path, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func loadValues(path string) (map[string]types.AttributeValue, error) {
	if path == "" {
		return nil, nil
	}
	var doc map[string]any
	if err := readYAML(path, &doc); err != nil {
		return nil, err
	}
	return attributevalue.MarshalMap(doc)
}

func (f *inputFlags) load() (map[string]string, map[string]types.AttributeValue, error) {
	names, err := loadNames(f.namesFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load names: %w", err)
	}
	values, err := loadValues(f.valuesFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load values: %w", err)
	}
	return names, values, nil
}

func plain(item map[string]types.AttributeValue) (map[string]any, error) {
	var doc map[string]any
	if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// writeItem prints a record as YAML in its plain form.
func writeItem(w io.Writer, item map[string]types.AttributeValue) error {
	doc, err := plain(item)
	if err != nil {
		return err
	}
	return writeYAML(w, doc)
}

func writeItems(w io.Writer, items []map[string]types.AttributeValue) error {
	docs := make([]map[string]any, 0, len(items))
	for _, item := range items {
		doc, err := plain(item)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	return writeYAML(w, docs)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
