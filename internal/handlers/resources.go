package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"natours/api/internal/crud"
	"natours/api/internal/resource"
)

func (h HandlerSet) ListTours(c *gin.Context)  { list(c, h.tours) }
func (h HandlerSet) GetTour(c *gin.Context)    { readOne(c, h.tours) }
func (h HandlerSet) CreateTour(c *gin.Context) { create(c, h.tours) }
func (h HandlerSet) UpdateTour(c *gin.Context) { update(c, h.tours) }
func (h HandlerSet) DeleteTour(c *gin.Context) { deleteOne(c, h.tours) }

func (h HandlerSet) ListUsers(c *gin.Context)  { list(c, h.users) }
func (h HandlerSet) GetUser(c *gin.Context)    { readOne(c, h.users) }
func (h HandlerSet) UpdateUser(c *gin.Context) { update(c, h.users) }
func (h HandlerSet) DeleteUser(c *gin.Context) { deleteOne(c, h.users) }

// aliasTopTours presets the query for the five best rated cheap tours.
func aliasTopTours(c *gin.Context) {
	q := c.Request.URL.Query()
	q.Set("limit", "5")
	q.Set("sort", "-ratingsAverage,price")
	q.Set("fields", "name,price,ratingsAverage,summary,difficulty")
	c.Request.URL.RawQuery = q.Encode()
	c.Next()
}

func list(c *gin.Context, f *crud.Factory) {
	page, err := f.List(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"results": len(page.Items),
		"total":   page.Total,
		"page":    page.Plan.Page.Page,
		"data":    gin.H{"data": page.Items},
	})
}

func readOne(c *gin.Context, f *crud.Factory) {
	rec, err := f.ReadOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"data": rec}})
}

func create(c *gin.Context, f *crud.Factory) {
	body, ok := bindRecord(c)
	if !ok {
		return
	}
	rec, err := f.Create(c.Request.Context(), body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": gin.H{"data": rec}})
}

func update(c *gin.Context, f *crud.Factory) {
	body, ok := bindRecord(c)
	if !ok {
		return
	}
	rec, err := f.Update(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"data": rec}})
}

func deleteOne(c *gin.Context, f *crud.Factory) {
	if err := f.DeleteOne(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func bindRecord(c *gin.Context) (resource.Record, bool) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		if statusFor(err) == http.StatusRequestEntityTooLarge {
			respondError(c, err)
			return nil, false
		}
		badRequest(c, "request body must be a JSON object")
		return nil, false
	}
	return resource.Record(body), true
}
