package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/master00J/patchwire/app/cfg"
	"github.com/master00J/patchwire/app/database"
	"github.com/master00J/patchwire/app/tasks"
)

func NewHandler(pubRepo database.PublisherRepository, itemRepo database.ItemRepository,
	subRepo database.SubscriptionRepository, deliveryRepo database.DeliveryRepository,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		pubRepo:      pubRepo,
		itemRepo:     itemRepo,
		subRepo:      subRepo,
		deliveryRepo: deliveryRepo,
		scheduler:    scheduler,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": cfg.Get().Version,
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	publisherCount, err := h.pubRepo.GetPublisherCount()
	if err != nil {
		slog.Error("Database error", "operation", "publisher_count", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	itemCount, err := h.itemRepo.GetItemCount()
	if err != nil {
		slog.Error("Database error", "operation", "item_count", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	subCount, err := h.subRepo.GetSubscriptionCount()
	if err != nil {
		slog.Error("Database error", "operation", "subscription_count", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	deliveryCount, err := h.deliveryRepo.GetDeliveryCount()
	if err != nil {
		slog.Error("Database error", "operation", "delivery_count", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, statsResponse{
		Publishers:    publisherCount,
		NewsItems:     itemCount,
		Subscriptions: subCount,
		Deliveries:    deliveryCount,
	})
}

func (h *Handler) ListPublishers(c *gin.Context) {
	publishers, err := h.pubRepo.GetPublishers()
	if err != nil {
		slog.Error("Database error", "operation", "list_publishers", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	response := make([]publisherResponse, 0, len(publishers))
	for _, p := range publishers {
		response = append(response, toPublisherResponse(p))
	}

	c.JSON(http.StatusOK, gin.H{"publishers": response})
}

func (h *Handler) GetPublisher(c *gin.Context) {
	id := c.Param("id")

	publisher, err := h.pubRepo.GetPublisher(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_publisher", "publisher", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if publisher == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "publisher not found"})
		return
	}

	c.JSON(http.StatusOK, toPublisherResponse(*publisher))
}

func (h *Handler) ListRecentItems(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = parsed
	}

	items, err := h.itemRepo.GetRecentItems(limit)
	if err != nil {
		slog.Error("Database error", "operation", "recent_items", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	response := make([]itemResponse, 0, len(items))
	for _, item := range items {
		response = append(response, toItemResponse(item))
	}

	c.JSON(http.StatusOK, gin.H{"items": response})
}

// GetItem returns a stored item together with its delivery records, so
// an operator can see which subscribers received it and which attempts
// were never confirmed.
func (h *Handler) GetItem(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	item, err := h.itemRepo.GetItem(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_item", "item", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}

	deliveries, err := h.deliveryRepo.GetDeliveriesForItem(id)
	if err != nil {
		slog.Error("Database error", "operation", "item_deliveries", "item", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	deliveryList := make([]deliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		deliveryList = append(deliveryList, deliveryResponse{
			ID:             d.ID,
			SubscriberID:   d.SubscriberID,
			SubscriptionID: d.SubscriptionID,
			Channel:        d.Channel,
			MessageRef:     d.MessageRef,
			CreatedAt:      d.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"item":       toItemResponse(*item),
		"deliveries": deliveryList,
	})
}

// TriggerCheck runs the equivalent of one scheduler tick on demand.
func (h *Handler) TriggerCheck(c *gin.Context) {
	if err := h.scheduler.CheckForUpdates(""); err != nil {
		slog.Error("Manual check failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "check scheduled for all enabled publishers"})
}

func (h *Handler) TriggerPublisherCheck(c *gin.Context) {
	id := c.Param("id")

	if err := h.scheduler.CheckForUpdates(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "check scheduled", "publisher": id})
}

func toItemResponse(item database.Item) itemResponse {
	return itemResponse{
		ID:          item.ID,
		PublisherID: item.PublisherID,
		ExternalID:  item.ExternalID,
		Title:       item.Title,
		URL:         item.URL,
		Type:        string(item.Type),
		PublishedAt: item.PublishedAt,
		CreatedAt:   item.CreatedAt,
	}
}

func toPublisherResponse(p database.Publisher) publisherResponse {
	return publisherResponse{
		ID:            p.ID,
		Name:          p.Name,
		SourceType:    p.SourceType,
		Enabled:       p.Enabled,
		Status:        p.Status,
		LastCheckAt:   p.LastCheckAt,
		LastSuccessAt: p.LastSuccessAt,
		LastError:     p.LastError,
		NextPollAt:    p.NextPollAt,
	}
}
