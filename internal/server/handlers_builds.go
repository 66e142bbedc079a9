package server

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/ashenforge/buildshare/backend/internal/builds"
	"github.com/ashenforge/buildshare/backend/internal/session"
	"github.com/gin-gonic/gin"
)

type createBuildPayload struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	PrimaryArchetype   string            `json:"primary_archetype"`
	SecondaryArchetype string            `json:"secondary_archetype"`
	Race               string            `json:"race"`
	Level              int               `json:"level"`
	Skills             []string          `json:"skills"`
	Equipment          map[string]string `json:"equipment"`
	IsPublic           *bool             `json:"is_public"`
}

type updateBuildPayload struct {
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	IsPublic    *bool             `json:"is_public"`
	Level       *int              `json:"level"`
	Skills      []string          `json:"skills"`
	Equipment   map[string]string `json:"equipment"`
}

type votePayload struct {
	Rating int `json:"rating"`
}

type buildResponsePayload struct {
	BuildID            string            `json:"build_id"`
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	PrimaryArchetype   string            `json:"primary_archetype"`
	SecondaryArchetype string            `json:"secondary_archetype"`
	ClassName          string            `json:"class_name"`
	Race               string            `json:"race"`
	Level              int               `json:"level"`
	Skills             []string          `json:"skills"`
	Equipment          map[string]string `json:"equipment"`
	IsPublic           bool              `json:"is_public"`
	ShareURL           string            `json:"share_url"`
	Rating             *float64          `json:"rating"`
	VoteCount          int64             `json:"vote_count"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

type buildListResponsePayload struct {
	Builds  []buildResponsePayload `json:"builds"`
	Total   int64                  `json:"total"`
	Page    int                    `json:"page"`
	Limit   int                    `json:"limit"`
	HasMore bool                   `json:"has_more"`
}

type voteResponsePayload struct {
	BuildID    string   `json:"build_id"`
	YourRating int      `json:"your_rating"`
	AvgRating  *float64 `json:"avg_rating"`
	VoteCount  int64    `json:"vote_count"`
}

type deleteResponsePayload struct {
	BuildID string `json:"build_id"`
	Deleted bool   `json:"deleted"`
}

func (h *httpHandler) buildToResponse(summary builds.BuildSummary) buildResponsePayload {
	build := summary.Build

	skills := []string{}
	if err := json.Unmarshal([]byte(build.SkillsJSON), &skills); err != nil {
		skills = []string{}
	}
	equipment := map[string]string{}
	if err := json.Unmarshal([]byte(build.EquipmentJSON), &equipment); err != nil {
		equipment = map[string]string{}
	}

	var rating *float64
	if summary.Rating.Average != nil {
		rounded := math.Round(*summary.Rating.Average*10) / 10
		rating = &rounded
	}

	return buildResponsePayload{
		BuildID:            build.BuildID,
		Name:               build.Name,
		Description:        build.Description,
		PrimaryArchetype:   build.PrimaryArchetype,
		SecondaryArchetype: build.SecondaryArchetype,
		ClassName:          build.ClassName,
		Race:               build.Race,
		Level:              build.Level,
		Skills:             skills,
		Equipment:          equipment,
		IsPublic:           build.IsPublic,
		ShareURL:           h.websiteURL + "/?build=" + build.BuildID,
		Rating:             rating,
		VoteCount:          summary.Rating.VoteCount,
		CreatedAt:          build.CreatedAt,
		UpdatedAt:          build.UpdatedAt,
	}
}

func (h *httpHandler) handleCreateBuild(c *gin.Context) {
	var payload createBuildPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, codeValidationError, "request body is not valid JSON")
		return
	}

	isPublic := true
	if payload.IsPublic != nil {
		isPublic = *payload.IsPublic
	}

	summary, err := h.buildService.Create(c.Request.Context(), builds.CreateRequest{
		Name:               payload.Name,
		Description:        payload.Description,
		PrimaryArchetype:   payload.PrimaryArchetype,
		SecondaryArchetype: payload.SecondaryArchetype,
		Race:               payload.Race,
		Level:              payload.Level,
		Skills:             payload.Skills,
		Equipment:          payload.Equipment,
		IsPublic:           isPublic,
	}, session.FromContext(c))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.buildToResponse(summary))
}

func (h *httpHandler) handleGetBuild(c *gin.Context) {
	summary, err := h.buildService.Get(c.Request.Context(), c.Param("id"), session.FromContext(c))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.buildToResponse(summary))
}

func (h *httpHandler) handleListBuilds(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	filter := builds.ListFilter{
		Search:             c.Query("search"),
		ClassName:          c.Query("class_name"),
		PrimaryArchetype:   c.Query("primary_archetype"),
		SecondaryArchetype: c.Query("secondary_archetype"),
		Race:               c.Query("race"),
		Sort:               c.DefaultQuery("sort", "newest"),
		Page:               page,
		PageSize:           pageSize,
	}

	items, total, err := h.buildService.List(c.Request.Context(), filter)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	response := buildListResponsePayload{
		Builds: make([]buildResponsePayload, 0, len(items)),
		Total:  total,
		Page:   filter.Page,
		Limit:  filter.PageSize,
	}
	for _, item := range items {
		response.Builds = append(response.Builds, h.buildToResponse(item))
	}
	response.HasMore = int64((filter.Page-1)*filter.PageSize+len(items)) < total

	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleUpdateBuild(c *gin.Context) {
	var payload updateBuildPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, codeValidationError, "request body is not valid JSON")
		return
	}

	summary, err := h.buildService.Update(c.Request.Context(), c.Param("id"), builds.UpdateRequest{
		Name:        payload.Name,
		Description: payload.Description,
		IsPublic:    payload.IsPublic,
		Level:       payload.Level,
		Skills:      payload.Skills,
		Equipment:   payload.Equipment,
	}, session.FromContext(c))
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.buildToResponse(summary))
}

func (h *httpHandler) handleDeleteBuild(c *gin.Context) {
	buildID := c.Param("id")
	if err := h.buildService.Delete(c.Request.Context(), buildID, session.FromContext(c)); err != nil {
		h.writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, deleteResponsePayload{BuildID: buildID, Deleted: true})
}

func (h *httpHandler) handleVoteBuild(c *gin.Context) {
	var payload votePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, codeValidationError, "request body is not valid JSON")
		return
	}

	buildID := c.Param("id")
	vote, rating, err := h.buildService.Vote(c.Request.Context(), buildID, session.FromContext(c), payload.Rating)
	if err != nil {
		h.writeDomainError(c, err)
		return
	}

	var avg *float64
	if rating.Average != nil {
		rounded := math.Round(*rating.Average*10) / 10
		avg = &rounded
	}
	c.JSON(http.StatusCreated, voteResponsePayload{
		BuildID:    buildID,
		YourRating: vote.Rating,
		AvgRating:  avg,
		VoteCount:  rating.VoteCount,
	})
}
