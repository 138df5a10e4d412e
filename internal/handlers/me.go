package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"natours/api/internal/media/sniffer"
	"natours/api/internal/middleware"
	"natours/api/internal/models"
	"natours/api/internal/resource"
	"natours/api/internal/service"
)

// selfEditable lists what an account may change about itself here.
var selfEditable = []string{models.AccountName, models.AccountEmail}

func (h HandlerSet) GetMe(c *gin.Context) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	c.Params = append(c.Params, gin.Param{Key: "id", Value: account.ID})
	readOne(c, h.users)
}

func (h HandlerSet) UpdateMe(c *gin.Context) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	body, ok := bindRecord(c)
	if !ok {
		return
	}
	if _, has := body[models.AccountPassword]; has {
		badRequest(c, "this route is not for password updates, please use /updateMyPassword")
		return
	}
	if _, has := body["passwordConfirm"]; has {
		badRequest(c, "this route is not for password updates, please use /updateMyPassword")
		return
	}

	filtered := resource.Record{}
	for _, k := range selfEditable {
		if v, ok := body[k]; ok {
			filtered[k] = v
		}
	}
	rec, err := h.users.Update(c.Request.Context(), account.ID, filtered)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"user": rec}})
}

func (h HandlerSet) UpdateMyPhoto(c *gin.Context) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if h.photoService == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "photo uploads are not configured"})
		return
	}
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		badRequest(c, "please upload a photo in the 'photo' field")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		badRequest(c, "cannot read uploaded photo")
		return
	}
	defer file.Close()

	result, err := h.photoService.Upload(c.Request.Context(), service.PhotoInput{
		AccountID:    account.ID,
		File:         file,
		DeclaredMIME: sniffer.DeclaredMIME(http.Header(fileHeader.Header)),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	resp := toAccountResponse(result.Account)
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"user": resp, "photoUrl": result.URL}})
}

func (h HandlerSet) DeleteMe(c *gin.Context) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if err := h.users.DeleteOne(c.Request.Context(), account.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
