/*
handlers.go - Read-only diagnostic handlers

Each handler takes a snapshot of the store's current schema/partitions
through Handler's accessor funcs rather than holding its own copy, so a
concurrent transaction is always reflected by the next request.
*/
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/warp/factdb/fact"
	"github.com/warp/factdb/registry"
)

// SchemaFunc returns the store's current schema.
type SchemaFunc func() *fact.Schema

// PartitionsFunc returns the store's current partition map.
type PartitionsFunc func() fact.PartitionMap

// Handler serves the diagnostic routes over one store.
type Handler struct {
	Schema     SchemaFunc
	Partitions PartitionsFunc
	Provider   fact.IndexProvider
	Registry   *registry.Registry
	StorePath  string
}

// NewHandler constructs a Handler over one open store.
func NewHandler(schema SchemaFunc, partitions PartitionsFunc, provider fact.IndexProvider, reg *registry.Registry, storePath string) *Handler {
	return &Handler{
		Schema:     schema,
		Partitions: partitions,
		Provider:   provider,
		Registry:   reg,
		StorePath:  storePath,
	}
}

type attributeView struct {
	Entid       fact.Entid `json:"entid"`
	Ident       string     `json:"ident"`
	ValueType   string     `json:"value_type"`
	Cardinality string     `json:"cardinality"`
	Unique      string     `json:"unique"`
	Index       bool       `json:"index"`
	Fulltext    bool       `json:"fulltext"`
	IsComponent bool       `json:"is_component"`
	NoHistory   bool       `json:"no_history"`
	Doc         string     `json:"doc,omitempty"`
}

func toAttributeView(schema *fact.Schema, e fact.Entid, attr fact.Attribute) attributeView {
	ident, _ := schema.IdentFor(e)
	return attributeView{
		Entid:       e,
		Ident:       ident,
		ValueType:   attr.ValueType.String(),
		Cardinality: attr.Cardinality.String(),
		Unique:      attr.Unique.String(),
		Index:       attr.Index,
		Fulltext:    attr.Fulltext,
		IsComponent: attr.IsComponent,
		NoHistory:   attr.NoHistory,
		Doc:         attr.Doc,
	}
}

// ListAttributes handles GET /api/schema/.
func (h *Handler) ListAttributes(w http.ResponseWriter, r *http.Request) {
	schema := h.Schema()
	out := make([]attributeView, 0, len(schema.SchemaMap))
	for e, attr := range schema.SchemaMap {
		out = append(out, toAttributeView(schema, e, attr))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetAttribute handles GET /api/schema/{ident}.
func (h *Handler) GetAttribute(w http.ResponseWriter, r *http.Request) {
	ident := chi.URLParam(r, "ident")
	schema := h.Schema()
	e, ok := schema.EntidFor(ident)
	if !ok {
		writeError(w, http.StatusNotFound, "no such ident")
		return
	}
	attr, ok := schema.AttributeFor(e)
	if !ok {
		writeError(w, http.StatusNotFound, "entid has no attribute")
		return
	}
	writeJSON(w, http.StatusOK, toAttributeView(schema, e, attr))
}

type partitionView struct {
	Name  string     `json:"name"`
	Start fact.Entid `json:"start"`
	Index fact.Entid `json:"index"`
}

// ListPartitions handles GET /api/partitions/.
func (h *Handler) ListPartitions(w http.ResponseWriter, r *http.Request) {
	partitions := h.Partitions()
	out := make([]partitionView, 0, len(partitions))
	for name, p := range partitions {
		out = append(out, partitionView{Name: name, Start: p.Start, Index: p.Index})
	}
	writeJSON(w, http.StatusOK, out)
}

type datomView struct {
	E     fact.Entid `json:"e"`
	A     fact.Entid `json:"a"`
	Ident string     `json:"a_ident,omitempty"`
	V     string     `json:"v"`
}

// GetEntity handles GET /api/entities/{entid}.
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "entid")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "entid must be an integer")
		return
	}

	schema := h.Schema()
	datoms, err := h.Provider.ScanEAV(r.Context(), fact.Entid(id), 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]datomView, 0, len(datoms))
	for _, d := range datoms {
		ident, _ := schema.IdentFor(d.A)
		out = append(out, datomView{E: d.E, A: d.A, Ident: ident, V: d.V.String()})
	}
	writeJSON(w, http.StatusOK, out)
}

type registryView struct {
	Path     string `json:"path"`
	RefCount int    `json:"ref_count"`
}

// RegistryStatus handles GET /api/registry.
func (h *Handler) RegistryStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, registryView{
		Path:     h.StorePath,
		RefCount: h.Registry.RefCount(h.StorePath),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
