package vectorstore

import (
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// toQdrantPoint converts a document. Hybrid points carry the named dense
// vector plus a synthesized sparse vector.
func toQdrantPoint(doc VectorDocument, hybrid bool) (*qdrant.PointStruct, error) {
	payload, err := documentPayload(doc)
	if err != nil {
		return nil, err
	}
	values, err := qdrant.TryValueMap(payload)
	if err != nil {
		return nil, fmt.Errorf("document %s: converting payload: %w", doc.ID, err)
	}

	p := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(PointID(doc.ID)),
		Payload: values,
	}
	if hybrid {
		sv := SynthesizeSparse(doc.Content)
		p.Vectors = qdrant.NewVectorsMap(map[string]*qdrant.Vector{
			AnnsFieldDense:  qdrant.NewVector(doc.Vector...),
			AnnsFieldSparse: qdrant.NewVectorSparse(sv.Indices, sv.Values),
		})
	} else {
		p.Vectors = qdrant.NewVectors(doc.Vector...)
	}
	return p, nil
}

func extractPointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func extractPayload(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = extractValue(v)
	}
	return out
}

func extractValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch val := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_StructValue:
		return extractPayload(val.StructValue.GetFields())
	case *qdrant.Value_ListValue:
		items := val.ListValue.GetValues()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = extractValue(item)
		}
		return out
	default:
		return nil
	}
}

// grpcFilter converts a Predicate; nil stays nil for an unfiltered query.
func grpcFilter(p *Predicate) *qdrant.Filter {
	if p == nil {
		return nil
	}
	f := &qdrant.Filter{}
	for _, c := range p.Must {
		f.Must = append(f.Must, grpcCondition(c))
	}
	for _, c := range p.Should {
		f.Should = append(f.Should, grpcCondition(c))
	}
	return f
}

func grpcCondition(c Condition) *qdrant.Condition {
	if c.Range != nil {
		return qdrant.NewRange(c.Field, &qdrant.Range{
			Gt:  c.Range.Gt,
			Gte: c.Range.Gte,
			Lt:  c.Range.Lt,
			Lte: c.Range.Lte,
		})
	}
	return qdrant.NewMatch(c.Field, c.Value)
}
