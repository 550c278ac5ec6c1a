package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/whisper-server/server"
)

// Model is one entry of the model listing.
type Model struct {
	ID     string `json:"id"`
	Object string `json:"object"`
	// Ref is the backend model reference the identifier maps to.
	Ref    string `json:"model"`
	Cached bool   `json:"cached"`
}

// ModelList mirrors the OpenAI list envelope.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// ListModels handles GET /v1/models.
func (h *Handler) ListModels(c *gin.Context) {
	catalog := h.cache.Catalog()
	ids := catalog.IDs()

	list := ModelList{Object: "list", Data: make([]Model, 0, len(ids))}
	for _, id := range ids {
		ref, _ := catalog.Model(id)
		list.Data = append(list.Data, Model{ID: id, Object: "model", Ref: ref, Cached: h.cache.Contains(id)})
	}
	server.RespondOK(c, list)
}

// CacheInfo handles GET /admin/cache.
func (h *Handler) CacheInfo(c *gin.Context) {
	server.RespondOK(c, h.cache.Info())
}

// ClearCache handles DELETE /admin/cache. It waits for engines still
// loading, then releases everything.
func (h *Handler) ClearCache(c *gin.Context) {
	released, err := h.cache.EvictAll(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, gin.H{"released": released})
}
