package handler

import (
	"time"

	"github.com/hitoshi/sundays/internal/model"
)

// APIレスポンスの表現。モデルにはJSONタグを持たせず、ここで変換する。

type addressJSON struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

func toAddressJSON(a model.Address) addressJSON {
	return addressJSON{Street: a.Street, City: a.City, State: a.State, Zip: a.Zip}
}

func (a addressJSON) toModel() model.Address {
	return model.Address{Street: a.Street, City: a.City, State: a.State, Zip: a.Zip}
}

type locationResponse struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Category      string            `json:"category"`
	Bio           string            `json:"bio"`
	Address       addressJSON       `json:"address"`
	Phone         string            `json:"phone"`
	Email         string            `json:"email"`
	Website       string            `json:"website"`
	Hours         map[string]string `json:"hours"`
	MainImage     string            `json:"main_image"`
	IsApproved    bool              `json:"is_approved"`
	IsFeatured    bool              `json:"is_featured"`
	TotalReviews  int               `json:"total_reviews"`
	AverageRating float64           `json:"average_rating"`
	CreatedBy     string            `json:"created_by"`
	CreatedDate   time.Time         `json:"created_date"`
}

func toLocationResponse(l *model.Location) locationResponse {
	return locationResponse{
		ID:            l.ID,
		Name:          l.Name,
		Category:      l.Category,
		Bio:           l.Bio,
		Address:       toAddressJSON(l.Address),
		Phone:         l.Phone,
		Email:         l.Email,
		Website:       l.Website,
		Hours:         l.Hours,
		MainImage:     l.MainImage,
		IsApproved:    l.IsApproved,
		IsFeatured:    l.IsFeatured,
		TotalReviews:  l.TotalReviews,
		AverageRating: l.AverageRating,
		CreatedBy:     l.CreatedBy,
		CreatedDate:   l.CreatedAt,
	}
}

func toLocationResponses(ls []model.Location) []locationResponse {
	out := make([]locationResponse, 0, len(ls))
	for i := range ls {
		out = append(out, toLocationResponse(&ls[i]))
	}
	return out
}

type eventResponse struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	EventType   string      `json:"event_type"`
	Description string      `json:"description"`
	Address     addressJSON `json:"address"`
	StartDate   time.Time   `json:"start_date"`
	EndDate     time.Time   `json:"end_date"`
	Image       string      `json:"image"`
	IsApproved  bool        `json:"is_approved"`
	IsFeatured  bool        `json:"is_featured"`
	CreatedBy   string      `json:"created_by"`
	CreatedDate time.Time   `json:"created_date"`
}

func toEventResponse(e *model.Event) eventResponse {
	return eventResponse{
		ID:          e.ID,
		Title:       e.Title,
		EventType:   e.EventType,
		Description: e.Description,
		Address:     toAddressJSON(e.Address),
		StartDate:   e.StartDate,
		EndDate:     e.EndDate,
		Image:       e.Image,
		IsApproved:  e.IsApproved,
		IsFeatured:  e.IsFeatured,
		CreatedBy:   e.CreatedBy,
		CreatedDate: e.CreatedAt,
	}
}

func toEventResponses(es []model.Event) []eventResponse {
	out := make([]eventResponse, 0, len(es))
	for i := range es {
		out = append(out, toEventResponse(&es[i]))
	}
	return out
}

type reviewResponse struct {
	ID          string    `json:"id"`
	LocationID  string    `json:"location_id"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment"`
	Photos      []string  `json:"photos"`
	UserName    string    `json:"user_name"`
	UserEmail   string    `json:"user_email"`
	CreatedDate time.Time `json:"created_date"`
}

func toReviewResponse(r *model.Review) reviewResponse {
	photos := r.Photos
	if photos == nil {
		photos = []string{}
	}
	return reviewResponse{
		ID:          r.ID,
		LocationID:  r.LocationID,
		Rating:      r.Rating,
		Comment:     r.Comment,
		Photos:      photos,
		UserName:    r.UserName,
		UserEmail:   r.UserEmail,
		CreatedDate: r.CreatedAt,
	}
}

type activityResponse struct {
	ID           string    `json:"id"`
	ActivityType string    `json:"activity_type"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	LocationID   string    `json:"location_id,omitempty"`
	EventID      string    `json:"event_id,omitempty"`
	UserName     string    `json:"user_name"`
	UserEmail    string    `json:"user_email"`
	CreatedDate  time.Time `json:"created_date"`
}

func toActivityResponse(a *model.FeedActivity) activityResponse {
	return activityResponse{
		ID:           a.ID,
		ActivityType: a.ActivityType,
		Title:        a.Title,
		Description:  a.Description,
		LocationID:   a.LocationID,
		EventID:      a.EventID,
		UserName:     a.UserName,
		UserEmail:    a.UserEmail,
		CreatedDate:  a.CreatedAt,
	}
}

func toReviewResponses(rs []model.Review) []reviewResponse {
	out := make([]reviewResponse, 0, len(rs))
	for i := range rs {
		out = append(out, toReviewResponse(&rs[i]))
	}
	return out
}

type dealResponse struct {
	ID          string     `json:"id"`
	LocationID  string     `json:"location_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ValidUntil  *time.Time `json:"valid_until"`
	IsActive    bool       `json:"is_active"`
	CreatedBy   string     `json:"created_by"`
	CreatedDate time.Time  `json:"created_date"`
}

func toDealResponse(d *model.Deal) dealResponse {
	return dealResponse{
		ID:          d.ID,
		LocationID:  d.LocationID,
		Title:       d.Title,
		Description: d.Description,
		ValidUntil:  d.ValidUntil,
		IsActive:    d.IsActive,
		CreatedBy:   d.CreatedBy,
		CreatedDate: d.CreatedAt,
	}
}

type commentResponse struct {
	ID          string    `json:"id"`
	ActivityID  string    `json:"activity_id"`
	Content     string    `json:"content"`
	UserName    string    `json:"user_name"`
	UserEmail   string    `json:"user_email"`
	CreatedDate time.Time `json:"created_date"`
}

func toCommentResponse(c *model.Comment) commentResponse {
	return commentResponse{
		ID:          c.ID,
		ActivityID:  c.ActivityID,
		Content:     c.Content,
		UserName:    c.UserName,
		UserEmail:   c.UserEmail,
		CreatedDate: c.CreatedAt,
	}
}

type submissionsResponse struct {
	Locations []locationResponse `json:"locations"`
	Events    []eventResponse    `json:"events"`
}

type claimResponse struct {
	LocationID  string    `json:"location_id"`
	UserEmail   string    `json:"user_email"`
	CreatedDate time.Time `json:"created_date"`
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	AvatarURL   string `json:"avatar_url"`
	Role        string `json:"role"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		AvatarURL:   u.AvatarURL,
		Role:        u.Role,
	}
}

// publicUserResponse は他のユーザーにも見せてよい項目だけを持つ。
type publicUserResponse struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	AvatarURL   string `json:"avatar_url"`
}

type organizerResponse struct {
	Organizer     publicUserResponse `json:"organizer"`
	Events        []eventResponse    `json:"events"`
	FollowerCount int                `json:"follower_count"`
	IsFollowing   bool               `json:"is_following"`
}

func toOrganizerResponse(p *model.OrganizerProfile) organizerResponse {
	return organizerResponse{
		Organizer: publicUserResponse{
			Email:       p.Organizer.Email,
			DisplayName: p.Organizer.PublicName(),
			Bio:         p.Organizer.Bio,
			AvatarURL:   p.Organizer.AvatarURL,
		},
		Events:        toEventResponses(p.Events),
		FollowerCount: p.FollowerCount,
		IsFollowing:   p.IsFollowing,
	}
}

type reportResponse struct {
	ID            string    `json:"id"`
	ReporterEmail string    `json:"reporter_email"`
	ContentType   string    `json:"content_type"`
	ContentID     string    `json:"content_id"`
	ContentTitle  string    `json:"content_title"`
	Reason        string    `json:"reason"`
	Status        string    `json:"status"`
	CreatedDate   time.Time `json:"created_date"`
}

func toReportResponse(r *model.Report) reportResponse {
	return reportResponse{
		ID:            r.ID,
		ReporterEmail: r.ReporterEmail,
		ContentType:   string(r.ContentType),
		ContentID:     r.ContentID,
		ContentTitle:  r.ContentTitle,
		Reason:        r.Reason,
		Status:        string(r.Status),
		CreatedDate:   r.CreatedAt,
	}
}

type hiddenResponse struct {
	ID          string    `json:"id"`
	ContentType string    `json:"content_type"`
	ContentID   string    `json:"content_id"`
	CreatedDate time.Time `json:"created_date"`
}

func toHiddenResponse(h *model.HiddenContent) hiddenResponse {
	return hiddenResponse{
		ID:          h.ID,
		ContentType: string(h.ContentType),
		ContentID:   h.ContentID,
		CreatedDate: h.CreatedAt,
	}
}

type subscriptionResponse struct {
	ID               string    `json:"id"`
	SubscriptionType string    `json:"subscription_type"`
	OrganizerEmail   string    `json:"organizer_email,omitempty"`
	Category         string    `json:"category,omitempty"`
	CreatedDate      time.Time `json:"created_date"`
}

func toSubscriptionResponse(s *model.EventSubscription) subscriptionResponse {
	return subscriptionResponse{
		ID:               s.ID,
		SubscriptionType: string(s.SubscriptionType),
		OrganizerEmail:   s.OrganizerEmail,
		Category:         s.Category,
		CreatedDate:      s.CreatedAt,
	}
}

type notificationResponse struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	EventID     string    `json:"event_id,omitempty"`
	IsRead      bool      `json:"is_read"`
	CreatedDate time.Time `json:"created_date"`
}

type notificationPageResponse struct {
	Notifications []notificationResponse `json:"notifications"`
	UnreadCount   int                    `json:"unread_count"`
}

func toNotificationPageResponse(p *model.NotificationPage) notificationPageResponse {
	out := notificationPageResponse{
		Notifications: make([]notificationResponse, 0, len(p.Notifications)),
		UnreadCount:   p.UnreadCount,
	}
	for _, n := range p.Notifications {
		out.Notifications = append(out.Notifications, notificationResponse{
			ID:          n.ID,
			Type:        n.Type,
			Title:       n.Title,
			Message:     n.Message,
			EventID:     n.EventID,
			IsRead:      n.IsRead,
			CreatedDate: n.CreatedAt,
		})
	}
	return out
}

type preferenceResponse struct {
	EmailNewEvents      bool `json:"email_new_events"`
	EmailReminders      bool `json:"email_reminders"`
	ReminderHoursBefore int  `json:"reminder_hours_before"`
}

func toPreferenceResponse(p *model.NotificationPreference) preferenceResponse {
	return preferenceResponse{
		EmailNewEvents:      p.EmailNewEvents,
		EmailReminders:      p.EmailReminders,
		ReminderHoursBefore: p.ReminderHoursBefore,
	}
}

type conversationResponse struct {
	ID                string     `json:"id"`
	ParticipantEmails []string   `json:"participant_emails"`
	ParticipantNames  []string   `json:"participant_names"`
	EventID           string     `json:"event_id,omitempty"`
	LastMessage       string     `json:"last_message"`
	LastMessageDate   *time.Time `json:"last_message_date"`
	UnreadCount       int        `json:"unread_count"`
}

func toConversationResponse(c *model.Conversation, unread int) conversationResponse {
	return conversationResponse{
		ID:                c.ID,
		ParticipantEmails: c.ParticipantEmails,
		ParticipantNames:  c.ParticipantNames,
		EventID:           c.EventID,
		LastMessage:       c.LastMessage,
		LastMessageDate:   c.LastMessageDate,
		UnreadCount:       unread,
	}
}

type messageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderEmail    string    `json:"sender_email"`
	SenderName     string    `json:"sender_name"`
	Content        string    `json:"content"`
	IsRead         bool      `json:"is_read"`
	CreatedDate    time.Time `json:"created_date"`
}

func toMessageResponse(m *model.Message) messageResponse {
	return messageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderEmail:    m.SenderEmail,
		SenderName:     m.SenderName,
		Content:        m.Content,
		IsRead:         m.IsRead,
		CreatedDate:    m.CreatedAt,
	}
}

func toMessageResponses(ms []model.Message) []messageResponse {
	out := make([]messageResponse, 0, len(ms))
	for i := range ms {
		out = append(out, toMessageResponse(&ms[i]))
	}
	return out
}
