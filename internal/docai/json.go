package docai

import (
	"fmt"
	"os"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/protobuf/encoding/protojson"
)

var unmarshalOpts = protojson.UnmarshalOptions{DiscardUnknown: true}

// LoadDocumentJSON decodes a Document AI JSON export. Both a bare Document
// and a ProcessResponse wrapper ({"document": {...}}) are accepted.
func LoadDocumentJSON(data []byte) (*documentaipb.Document, error) {
	const op = "LoadDocumentJSON"

	resp := &documentaipb.ProcessResponse{}
	if err := unmarshalOpts.Unmarshal(data, resp); err == nil && resp.GetDocument() != nil {
		return resp.Document, nil
	}

	doc := &documentaipb.Document{}
	if err := unmarshalOpts.Unmarshal(data, doc); err != nil {
		return nil, NewProcessingError(op, ErrInvalidDocument, err.Error())
	}
	return doc, nil
}

// LoadDocumentFile reads and decodes a Document AI JSON export from disk.
func LoadDocumentFile(path string) (*documentaipb.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return LoadDocumentJSON(data)
}

// MarshalDocument renders doc as indented protojson.
func MarshalDocument(doc *documentaipb.Document) ([]byte, error) {
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(doc)
}
