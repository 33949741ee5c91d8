package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hurttlocker/holdings/internal/assemble"
	"github.com/hurttlocker/holdings/internal/pipeline"
	"github.com/hurttlocker/holdings/internal/timeseries"
	"github.com/hurttlocker/holdings/internal/titles"
)

// EntriesResponse is the nested payload the renderer draws from.
type EntriesResponse struct {
	Build   string           `json:"build"`
	Range   timeseries.Range `json:"range"`
	Entries []assemble.Entry `json:"entries"`
}

// TitlesResponse lists titles in hard-copy order.
type TitlesResponse struct {
	Build  string           `json:"build"`
	Range  timeseries.Range `json:"range"`
	Titles []*titles.Title  `json:"titles"`
}

// ClusterResponse describes the entry a title belongs to.
type ClusterResponse struct {
	ID    string         `json:"id"`
	Entry assemble.Entry `json:"entry"`
}

// SelectionResponse reports the selection and any IDs the current build
// does not hold.
type SelectionResponse struct {
	IDs     []string `json:"ids"`
	List    string   `json:"list"`
	Unknown []string `json:"unknown,omitempty"`
}

// SelectionRequest replaces the selection. List is the comma-joined form and
// is merged with IDs.
type SelectionRequest struct {
	IDs  []string `json:"ids"`
	List string   `json:"list"`
}

func (s *Server) current(c *gin.Context) (*pipeline.Result, bool) {
	res, err := s.holder.Current()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return nil, false
	}
	return res, true
}

func (s *Server) handleHealth(c *gin.Context) {
	res, err := s.holder.Current()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	body := gin.H{"status": "ok", "build": res.ID.String(), "built_at": res.BuiltAt}
	if last := s.holder.LastError(); last != nil {
		body["status"] = "stale"
		body["error"] = last.Error()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleEntries(c *gin.Context) {
	res, ok := s.current(c)
	if !ok {
		return
	}
	switch order := c.DefaultQuery("order", "mf"); order {
	case "mf":
		c.JSON(http.StatusOK, EntriesResponse{
			Build:   res.ID.String(),
			Range:   res.Range,
			Entries: res.Output.Entries,
		})
	case "hc":
		c.JSON(http.StatusOK, TitlesResponse{
			Build:  res.ID.String(),
			Range:  res.Range,
			Titles: res.Output.ByHardCopy,
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "order must be mf or hc, got " + order})
	}
}

func (s *Server) handleTitle(c *gin.Context) {
	res, ok := s.current(c)
	if !ok {
		return
	}
	id := c.Param("id")
	t, found := res.Title(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown title " + id})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleCluster(c *gin.Context) {
	res, ok := s.current(c)
	if !ok {
		return
	}
	id := c.Param("id")
	e, found := res.Entry(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown title " + id})
		return
	}
	c.JSON(http.StatusOK, ClusterResponse{ID: id, Entry: e})
}

func (s *Server) handleStats(c *gin.Context) {
	res, ok := s.current(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleGetSelection(c *gin.Context) {
	c.JSON(http.StatusOK, s.selectionResponse(s.holder.Selection()))
}

func (s *Server) handlePutSelection(c *gin.Context) {
	var req SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid selection: " + err.Error()})
		return
	}
	ids := append([]string{}, req.IDs...)
	if strings.TrimSpace(req.List) != "" {
		ids = append(ids, strings.Split(req.List, ",")...)
	}
	c.JSON(http.StatusOK, s.selectionResponse(s.holder.Select(ids)))
}

func (s *Server) handleToggle(c *gin.Context) {
	s.holder.Toggle(c.Param("id"))
	c.JSON(http.StatusOK, s.selectionResponse(s.holder.Selection()))
}

func (s *Server) handleRebuild(c *gin.Context) {
	res, err := s.holder.Rebuild(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) selectionResponse(sel *assemble.Selection) SelectionResponse {
	resp := SelectionResponse{IDs: sel.IDs(), List: sel.String()}
	if res, err := s.holder.Current(); err == nil {
		resp.Unknown = sel.Unknown(res.Output)
	}
	return resp
}
