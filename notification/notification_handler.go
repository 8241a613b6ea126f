package notification

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// NotificationHandler implements HTTP handlers for notification API endpoints
type NotificationHandler struct {
	manager *NotificationManager
	logger  *logrus.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(manager *NotificationManager, log *logrus.Logger) *NotificationHandler {
	return &NotificationHandler{
		manager: manager,
		logger:  log,
	}
}

// RegisterRoutes registers notification routes with the provided HTTP mux
func (h *NotificationHandler) RegisterRoutes(mux *http.ServeMux) {
	// GET /api/notifications - List all notifications
	// GET /api/notifications?unread=true - List unread notifications only
	// GET /api/notifications?type=asset_no_data - List notifications by type
	// GET /api/notifications?asset=Bitcoin - List notifications about an asset
	// POST /api/notifications - Create a system alert
	// DELETE /api/notifications - Clear all notifications
	mux.HandleFunc("/api/notifications", h.handleNotifications)

	// POST /api/notifications/{id}/read - Mark a notification as read
	// DELETE /api/notifications/{id} - Delete a notification
	mux.HandleFunc("/api/notifications/", h.handleNotificationActions)

	// POST /api/notifications/read-all - Mark all notifications as read
	mux.HandleFunc("/api/notifications/read-all", h.handleReadAllNotifications)
}

func (h *NotificationHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Error("Error encoding response")
	}
}

// handleNotifications handles requests to /api/notifications
func (h *NotificationHandler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)

	case http.MethodGet:
		query := r.URL.Query()
		var notifications []Notification

		switch {
		case query.Get("unread") == "true":
			notifications = h.manager.GetUnreadNotifications()
		case query.Get("type") != "":
			notifications = h.manager.GetNotificationsByType(NotificationType(query.Get("type")))
		case query.Get("asset") != "":
			notifications = h.manager.GetNotificationsByAsset(query.Get("asset"))
		default:
			notifications = h.manager.GetNotifications()
		}
		h.writeJSON(w, http.StatusOK, notifications)

	case http.MethodPost:
		var notif Notification
		if err := json.NewDecoder(r.Body).Decode(&notif); err != nil {
			h.logger.WithError(err).Warn("Error decoding notification request")
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if notif.Title == "" && notif.Message == "" {
			http.Error(w, "title or message is required", http.StatusBadRequest)
			return
		}

		alert := CreateSystemAlertNotification(notif.Title, notif.Message, notif.Metadata)
		if notif.Priority != "" {
			alert.Priority = notif.Priority
		}
		if !notif.Timestamp.IsZero() {
			alert.Timestamp = notif.Timestamp
		}
		h.manager.AddNotification(alert)

		h.writeJSON(w, http.StatusCreated, map[string]interface{}{
			"message": "Notification created successfully",
			"id":      alert.ID,
		})

	case http.MethodDelete:
		h.manager.ClearNotifications()
		h.writeJSON(w, http.StatusOK, map[string]string{
			"message": "All notifications cleared",
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleNotificationActions handles actions on individual notifications
func (h *NotificationHandler) handleNotificationActions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/notifications/")
	pathParts := strings.Split(path, "/")
	notificationID := pathParts[0]
	if notificationID == "" {
		http.Error(w, "Invalid notification ID", http.StatusBadRequest)
		return
	}

	switch {
	case len(pathParts) >= 2 && pathParts[1] == "read" && r.Method == http.MethodPost:
		if !h.manager.MarkAsRead(notificationID) {
			http.Error(w, "Notification not found", http.StatusNotFound)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]string{
			"message": "Notification marked as read",
			"id":      notificationID,
		})

	case len(pathParts) == 1 && r.Method == http.MethodDelete:
		if !h.manager.DeleteNotification(notificationID) {
			http.Error(w, "Notification not found", http.StatusNotFound)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]string{
			"message": "Notification deleted",
			"id":      notificationID,
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleReadAllNotifications handles marking all notifications as read
func (h *NotificationHandler) handleReadAllNotifications(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodPost:
		h.manager.MarkAllAsRead()
		h.writeJSON(w, http.StatusOK, map[string]string{
			"message": "All notifications marked as read",
		})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
