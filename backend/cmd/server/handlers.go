package main

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"topichub/backend/internal/activity"
	"topichub/backend/internal/feed"
	"topichub/backend/internal/graph"
	apperrors "topichub/backend/pkg/errors"
)

type server struct {
	repo       *graph.Repository
	store      *activity.Store
	aggregator *feed.Aggregator
	log        *zap.Logger
}

func (s *server) routes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/topics", s.handleListTopics)
	router.GET("/topics/query", s.handleSearchTopics)
	router.PATCH("/topics", s.handleMutateTopics)
	router.GET("/topics/feeds", s.handleFeeds)

	router.GET("/topics/:topicId/media", s.handleTopicMedia)
	router.POST("/topics/:topicId/media", s.handleAttachMedia)
	router.DELETE("/topics/:topicId/media/:mediumId", s.handleDetachMedium)
	router.POST("/topics/:topicId/media/:mediumId/confirm", s.handleConfirm(true))
	router.POST("/topics/:topicId/media/:mediumId/unconfirm", s.handleConfirm(false))

	router.POST("/topics/:topicId/subscribe", s.handleSubscribe)
	router.POST("/topics/:topicId/unsubscribe", s.handleUnsubscribe)
	router.GET("/topics/:topicId/relationships/users", s.handleTopicUsers)
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
}

// GET /topics?root=xx&maxDepth=3
func (s *server) handleListTopics(c *gin.Context) {
	maxDepth := 3
	if raw := c.Query("maxDepth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, apperrors.NewBadRequest("maxDepth must be an integer", err))
			return
		}
		maxDepth = parsed
	}

	root := c.Query("root")
	if root == graph.RootTopicName {
		root = ""
	}

	topics, relations, err := s.repo.FindGraph(c.Request.Context(), root, maxDepth)
	if err != nil {
		s.log.Error("Failed to list topics", zap.Error(err))
		respondError(c, apperrors.NewBadRequest("failed to list topics", err))
		return
	}

	c.JSON(http.StatusOK, serializeTopicGraph(topics, relations))
}

// GET /topics/query?query=xxx
func (s *server) handleSearchTopics(c *gin.Context) {
	key := c.Query("query")

	topics, err := s.repo.Search(c.Request.Context(), key, 15)
	if err != nil {
		s.log.Error("Topic search failed", zap.Error(err))
		respondError(c, apperrors.NewBadRequest("topic search failed", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": serializeTopics(topics)})
}

// PATCH /topics — apply a batch of topic/relation saves and deletes
// atomically
func (s *server) handleMutateTopics(c *gin.Context) {
	var req struct {
		Data []graph.BatchOperation `json:"data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequest("invalid batch payload", err))
		return
	}

	ops, err := graph.ParseBatch(req.Data)
	if err != nil {
		respondError(c, err)
		return
	}

	results, err := s.repo.ApplyBatch(c.Request.Context(), ops)
	if err != nil {
		s.log.Error("Mutation batch failed", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": results})
}

// GET /topics/feeds
func (s *server) handleFeeds(c *gin.Context) {
	req, err := parseFeedRequest(c)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	if req.More {
		items, err := s.aggregator.More(ctx, req)
		if err != nil {
			s.log.Error("Feed query failed", zap.Error(err))
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": items})
		return
	}

	summary, err := s.aggregator.Summary(ctx, req)
	if err != nil {
		s.log.Error("Feed summary failed", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func parseFeedRequest(c *gin.Context) (feed.Request, error) {
	req := feed.Request{
		UserID: c.Query("userId"),
		More:   c.Query("more") == "true",
		Type:   feed.Category(c.Query("type")),
		Page:   feed.Page{Number: 1, Size: 10},
	}

	if req.UserID == "" {
		return req, apperrors.ErrMissingUserID
	}

	if raw := c.Query("page[number]"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, apperrors.NewBadRequest("page[number] must be an integer", err)
		}
		req.Page.Number = n
	}
	if raw := c.Query("page[size]"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, apperrors.NewBadRequest("page[size] must be an integer", err)
		}
		req.Page.Size = n
	}

	var err error
	if req.LastUpdated.Recommend, err = parseMillis(c.Query("lastUpdatedAt[recommendTopics]")); err != nil {
		return req, err
	}
	if req.LastUpdated.Hottest, err = parseMillis(c.Query("lastUpdatedAt[hottestTopics]")); err != nil {
		return req, err
	}
	if req.LastUpdated.Newest, err = parseMillis(c.Query("lastUpdatedAt[newestTopics]")); err != nil {
		return req, err
	}

	return req, nil
}

// parseMillis parses an optional millisecond epoch timestamp
func parseMillis(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperrors.NewBadRequest("lastUpdatedAt must be a millisecond timestamp", err)
	}
	t := time.UnixMilli(millis).UTC()
	return &t, nil
}

// GET /topics/:topicId/media
func (s *server) handleTopicMedia(c *gin.Context) {
	offset, limit, err := parsePage(c, 1000)
	if err != nil {
		respondError(c, err)
		return
	}

	media, err := s.store.MediaForTopic(c.Request.Context(), c.Param("topicId"), offset, limit)
	if err != nil {
		s.log.Error("Failed to load topic media", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": serializeMedia(media)})
}

// POST /topics/:topicId/media
func (s *server) handleAttachMedia(c *gin.Context) {
	var req struct {
		MediumIDList string `json:"mediumIdList" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequest("mediumIdList is required", err))
		return
	}

	ids := strings.Split(req.MediumIDList, ",")
	if err := s.store.AttachMedia(c.Request.Context(), c.Param("topicId"), ids); err != nil {
		s.log.Error("Failed to attach media", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

// DELETE /topics/:topicId/media/:mediumId
func (s *server) handleDetachMedium(c *gin.Context) {
	if err := s.store.DetachMedium(c.Request.Context(), c.Param("topicId"), c.Param("mediumId")); err != nil {
		s.log.Error("Failed to detach medium", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// POST /topics/:topicId/media/:mediumId/confirm and /unconfirm
func (s *server) handleConfirm(confirmed bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.store.SetConfirmed(c.Request.Context(), c.Param("topicId"), c.Param("mediumId"), confirmed)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{})
	}
}

type subscribePayload struct {
	Data struct {
		Attributes struct {
			UserID string `json:"userId" binding:"required"`
		} `json:"attributes"`
	} `json:"data"`
}

// POST /topics/:topicId/subscribe
func (s *server) handleSubscribe(c *gin.Context) {
	var req subscribePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequest("userId is required", err))
		return
	}

	if err := s.store.Subscribe(c.Request.Context(), req.Data.Attributes.UserID, c.Param("topicId")); err != nil {
		s.log.Error("Subscribe failed", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": "success"})
}

// POST /topics/:topicId/unsubscribe
func (s *server) handleUnsubscribe(c *gin.Context) {
	var req subscribePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequest("userId is required", err))
		return
	}

	if err := s.store.Unsubscribe(c.Request.Context(), req.Data.Attributes.UserID, c.Param("topicId")); err != nil {
		s.log.Error("Unsubscribe failed", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": "success"})
}

// GET /topics/:topicId/relationships/users
func (s *server) handleTopicUsers(c *gin.Context) {
	offset, limit, err := parsePage(c, 1000)
	if err != nil {
		respondError(c, err)
		return
	}

	users, err := s.store.SubscribersOf(c.Request.Context(), c.Param("topicId"), offset, limit)
	if err != nil {
		s.log.Error("Failed to load subscribers", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": serializeUsers(users)})
}

// parsePage reads page[number]/page[size] with a caller-chosen default
// size and returns the offset/limit window
func parsePage(c *gin.Context, defaultSize int) (int, int, error) {
	number := 1
	size := defaultSize

	if raw := c.Query("page[number]"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return 0, 0, apperrors.NewBadRequest("page[number] must be a positive integer", err)
		}
		number = n
	}
	if raw := c.Query("page[size]"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return 0, 0, apperrors.NewBadRequest("page[size] must be a positive integer", err)
		}
		size = n
	}

	return (number - 1) * size, size, nil
}
