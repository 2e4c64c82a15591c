package vectorstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Payload field names shared by every backend.
const (
	fieldID            = "id"
	fieldContent       = "content"
	fieldRelativePath  = "relativePath"
	fieldStartLine     = "startLine"
	fieldEndLine       = "endLine"
	fieldFileExtension = "fileExtension"
	fieldMetadata      = "metadata"
	fieldOriginalID    = "originalId"
)

// encodeMetadata serializes metadata as the JSON string stored in payloads.
func encodeMetadata(metadata map[string]any) (string, error) {
	if metadata == nil {
		return "{}", nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}
	return string(b), nil
}

// decodeMetadata restores a metadata blob. A blob that does not parse yields
// an empty map and a warning.
func decodeMetadata(raw string, logger *zap.Logger) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	metadata, err := parseMetadata(raw)
	if err != nil {
		logger.Warn("failed to decode document metadata", zap.Error(err))
		payloadDecodeFailuresTotal.Inc()
		return map[string]any{}
	}
	return metadata
}

// parseMetadata decodes a metadata blob keeping integers exact: integral
// numbers that fit come back as int64, everything else as float64.
func parseMetadata(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var metadata map[string]any
	if err := dec.Decode(&metadata); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after metadata object")
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	for k, v := range metadata {
		metadata[k] = restoreNumbers(v)
	}
	return metadata, nil
}

func restoreNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if !strings.ContainsAny(t.String(), ".eE") {
			if n, err := t.Int64(); err == nil {
				return n
			}
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = restoreNumbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = restoreNumbers(e)
		}
	}
	return v
}

// documentPayload flattens a document into the stored payload.
func documentPayload(doc VectorDocument) (map[string]any, error) {
	metadata, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	return map[string]any{
		fieldContent:       doc.Content,
		fieldRelativePath:  doc.RelativePath,
		fieldStartLine:     int64(doc.StartLine),
		fieldEndLine:       int64(doc.EndLine),
		fieldFileExtension: doc.FileExtension,
		fieldMetadata:      metadata,
		fieldOriginalID:    doc.ID,
	}, nil
}

// documentFromPayload rebuilds a document from a decoded payload. pointID is
// used when the payload carries no originalId.
func documentFromPayload(pointID string, payload map[string]any, logger *zap.Logger) VectorDocument {
	doc := VectorDocument{
		ID:            pointID,
		Content:       payloadString(payload, fieldContent),
		RelativePath:  payloadString(payload, fieldRelativePath),
		StartLine:     payloadInt(payload, fieldStartLine),
		EndLine:       payloadInt(payload, fieldEndLine),
		FileExtension: payloadString(payload, fieldFileExtension),
	}
	if original := payloadString(payload, fieldOriginalID); original != "" {
		doc.ID = original
	}
	switch m := payload[fieldMetadata].(type) {
	case string:
		doc.Metadata = decodeMetadata(m, logger)
	case map[string]any:
		doc.Metadata = m
	default:
		doc.Metadata = map[string]any{}
	}
	return doc
}

// projectPayload returns the requested fields of a stored point. "id" is the
// caller's original ID and a string metadata blob is decoded, or kept raw if
// it does not parse.
func projectPayload(pointID string, payload map[string]any, fields []string) map[string]any {
	id := pointID
	if original := payloadString(payload, fieldOriginalID); original != "" {
		id = original
	}
	row := map[string]any{fieldID: id}
	for _, f := range fields {
		switch {
		case f == fieldID:
			row[f] = id
		case f == fieldMetadata:
			raw, isString := payload[f].(string)
			if !isString {
				if v, ok := payload[f]; ok {
					row[f] = v
				}
				continue
			}
			if decoded, err := parseMetadata(raw); err != nil {
				row[f] = raw
			} else {
				row[f] = decoded
			}
		default:
			if v, ok := payload[f]; ok {
				row[f] = v
			}
		}
	}
	return row
}

func payloadString(payload map[string]any, key string) string {
	if s, ok := payload[key].(string); ok {
		return s
	}
	return ""
}

func payloadInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}
