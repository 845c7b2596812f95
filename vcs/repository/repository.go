package repository

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Descriptor is a repository as reported by a forge listing.
type Descriptor struct {
	Name          string
	FullName      string
	DefaultBranch string
	Private       bool
	Archived      bool
}

// SchemaError reports a listing entry that does not match the expected repository schema.
type SchemaError struct {
	Index int
	Field string
	Cause error
}

func (err *SchemaError) Error() string {
	if err.Index < 0 {
		return fmt.Sprintf("invalid repository listing: %v", err.Cause)
	}

	if err.Cause != nil {
		return fmt.Sprintf("invalid repository #%d: field %q: %v", err.Index, err.Field, err.Cause)
	}

	return fmt.Sprintf("invalid repository #%d: missing field %q", err.Index, err.Field)
}

func (err *SchemaError) Unwrap() error {
	return err.Cause
}

type rawDescriptor struct {
	Name          *string `json:"name"`
	FullName      *string `json:"full_name"`
	DefaultBranch *string `json:"default_branch"`
	Private       *bool   `json:"private"`
	Archived      *bool   `json:"archived"`
}

// DecodeList parses a JSON array of repository objects.
func DecodeList(data []byte) ([]Descriptor, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &SchemaError{Index: -1, Cause: err}
	}

	result := make([]Descriptor, 0, len(entries))
	for i, entry := range entries {
		descriptor, err := decode(i, entry)
		if err != nil {
			return nil, err
		}

		result = append(result, descriptor)
	}

	return result, nil
}

func decode(index int, entry json.RawMessage) (Descriptor, error) {
	var raw rawDescriptor
	if err := json.Unmarshal(entry, &raw); err != nil {
		field := ""
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			field = typeErr.Field
		}

		return Descriptor{}, &SchemaError{Index: index, Field: field, Cause: err}
	}

	missing := func(field string) error {
		return &SchemaError{Index: index, Field: field}
	}

	switch {
	case raw.Name == nil:
		return Descriptor{}, missing("name")
	case raw.FullName == nil:
		return Descriptor{}, missing("full_name")
	case raw.DefaultBranch == nil:
		return Descriptor{}, missing("default_branch")
	case raw.Private == nil:
		return Descriptor{}, missing("private")
	case raw.Archived == nil:
		return Descriptor{}, missing("archived")
	}

	return Descriptor{
		Name:          *raw.Name,
		FullName:      *raw.FullName,
		DefaultBranch: *raw.DefaultBranch,
		Private:       *raw.Private,
		Archived:      *raw.Archived,
	}, nil
}

// Dedup merges descriptors sharing a FullName, keeping the first occurrence.
func Dedup(descriptors []Descriptor) []Descriptor {
	seen := map[string]struct{}{}
	result := []Descriptor{}

	for _, descriptor := range descriptors {
		if _, ok := seen[descriptor.FullName]; ok {
			continue
		}

		seen[descriptor.FullName] = struct{}{}
		result = append(result, descriptor)
	}

	return result
}
