package notification

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aquibsayyed9/coin-analyze/types"
)

// NotificationPriority defines the priority level of a notification
type NotificationPriority string

const (
	// Priority levels
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
)

// NotificationType defines the type of notification
type NotificationType string

const (
	// Notification types
	TypeProviderFailed   NotificationType = "provider_failed"
	TypeProviderFallback NotificationType = "provider_fallback"
	TypeAssetNoData      NotificationType = "asset_no_data"
	TypeRunCompleted     NotificationType = "run_completed"
	TypeSystemAlert      NotificationType = "system_alert"
)

// Notification represents a notification to be displayed to the user
type Notification struct {
	ID        string                 `json:"id"`
	Type      NotificationType       `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Priority  NotificationPriority   `json:"priority"`
	Timestamp time.Time              `json:"timestamp"`
	Read      bool                   `json:"read"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NotificationManager manages notifications
type NotificationManager struct {
	notifications    []Notification
	maxNotifications int
	mutex            sync.RWMutex
}

// NewNotificationManager creates a new notification manager
func NewNotificationManager(maxNotifications int) *NotificationManager {
	if maxNotifications <= 0 {
		maxNotifications = 100
	}
	return &NotificationManager{
		notifications:    []Notification{},
		maxNotifications: maxNotifications,
	}
}

// AddNotification adds a notification to the manager
func (nm *NotificationManager) AddNotification(notification Notification) {
	nm.mutex.Lock()
	defer nm.mutex.Unlock()

	if notification.ID == "" {
		notification.ID = generateID()
	}
	if notification.Timestamp.IsZero() {
		notification.Timestamp = time.Now()
	}

	// Newest first
	nm.notifications = append([]Notification{notification}, nm.notifications...)

	if len(nm.notifications) > nm.maxNotifications {
		nm.notifications = nm.notifications[:nm.maxNotifications]
	}
}

// HandleEvent records a pipeline run event. It is a types.RunEventHandler.
func (nm *NotificationManager) HandleEvent(event types.RunEvent) {
	if n, ok := FromEvent(event); ok {
		nm.AddNotification(n)
	}
}

// GetNotifications returns all notifications
func (nm *NotificationManager) GetNotifications() []Notification {
	nm.mutex.RLock()
	defer nm.mutex.RUnlock()

	notifications := make([]Notification, len(nm.notifications))
	copy(notifications, nm.notifications)
	return notifications
}

// GetUnreadNotifications returns all unread notifications
func (nm *NotificationManager) GetUnreadNotifications() []Notification {
	return nm.filter(func(n Notification) bool { return !n.Read })
}

// GetNotificationsByType returns notifications of a specific type
func (nm *NotificationManager) GetNotificationsByType(notificationType NotificationType) []Notification {
	return nm.filter(func(n Notification) bool { return n.Type == notificationType })
}

// GetNotificationsByAsset returns notifications about an asset, matched on the
// "asset" metadata or, failing that, on the title and message
func (nm *NotificationManager) GetNotificationsByAsset(asset string) []Notification {
	return nm.filter(func(n Notification) bool {
		if a, ok := n.Metadata["asset"].(string); ok && strings.EqualFold(a, asset) {
			return true
		}
		return strings.Contains(n.Title, asset) || strings.Contains(n.Message, asset)
	})
}

func (nm *NotificationManager) filter(keep func(Notification) bool) []Notification {
	nm.mutex.RLock()
	defer nm.mutex.RUnlock()

	filtered := []Notification{}
	for _, notification := range nm.notifications {
		if keep(notification) {
			filtered = append(filtered, notification)
		}
	}
	return filtered
}

// DeleteNotification deletes a notification by ID and returns whether it was found
func (nm *NotificationManager) DeleteNotification(id string) bool {
	nm.mutex.Lock()
	defer nm.mutex.Unlock()

	for i, notification := range nm.notifications {
		if notification.ID == id {
			nm.notifications = append(nm.notifications[:i], nm.notifications[i+1:]...)
			return true
		}
	}
	return false
}

// MarkAsRead marks a notification as read and returns whether it was found
func (nm *NotificationManager) MarkAsRead(id string) bool {
	nm.mutex.Lock()
	defer nm.mutex.Unlock()

	for i := range nm.notifications {
		if nm.notifications[i].ID == id {
			nm.notifications[i].Read = true
			return true
		}
	}
	return false
}

// MarkAllAsRead marks all notifications as read
func (nm *NotificationManager) MarkAllAsRead() {
	nm.mutex.Lock()
	defer nm.mutex.Unlock()

	for i := range nm.notifications {
		nm.notifications[i].Read = true
	}
}

// ClearNotifications removes all notifications
func (nm *NotificationManager) ClearNotifications() {
	nm.mutex.Lock()
	defer nm.mutex.Unlock()

	nm.notifications = []Notification{}
}

// FromEvent converts a run event into a notification. Aborted runs are not
// reported; the caller that cancelled them already knows.
func FromEvent(event types.RunEvent) (Notification, bool) {
	metadata := map[string]interface{}{}
	if event.Asset != "" {
		metadata["asset"] = event.Asset
	}
	if event.Provider != "" {
		metadata["provider"] = event.Provider
	}

	n := Notification{
		ID:        generateID(),
		Message:   event.Message,
		Timestamp: event.At,
		Metadata:  metadata,
	}

	switch event.Type {
	case types.EventProviderFailed:
		n.Type = TypeProviderFailed
		n.Title = fmt.Sprintf("%s unavailable", event.Provider)
		n.Priority = PriorityMedium
	case types.EventProviderFallback:
		n.Type = TypeProviderFallback
		n.Title = fmt.Sprintf("%s: fallback to %s", event.Asset, event.Provider)
		n.Priority = PriorityLow
	case types.EventAssetNoData:
		n.Type = TypeAssetNoData
		n.Title = fmt.Sprintf("No volume data for %s", event.Asset)
		n.Priority = PriorityHigh
	case types.EventRunCompleted:
		n.Type = TypeRunCompleted
		n.Title = "Volume aggregation completed"
		n.Priority = PriorityLow
	default:
		return Notification{}, false
	}
	return n, true
}

// CreateSystemAlertNotification creates a notification for a system alert
func CreateSystemAlertNotification(title, message string, metadata map[string]interface{}) Notification {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	return Notification{
		ID:        generateID(),
		Type:      TypeSystemAlert,
		Title:     title,
		Message:   message,
		Priority:  PriorityHigh,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

var idCounter atomic.Uint64

// generateID generates a unique ID for notifications
func generateID() string {
	return fmt.Sprintf("%s-%d", time.Now().Format("20060102150405"), idCounter.Add(1))
}
