package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/sundays/internal/model"
	"github.com/lib/pq"
)

const conversationColumns = `id, participant_emails, participant_names, pair_key, event_id, last_message, last_message_date, created_at`

// PostgresConversationRepo はPostgreSQLを使用した会話リポジトリ。
type PostgresConversationRepo struct {
	db *sql.DB
}

// NewPostgresConversationRepo はPostgresConversationRepoを生成する。
func NewPostgresConversationRepo(db *sql.DB) *PostgresConversationRepo {
	return &PostgresConversationRepo{db: db}
}

func scanConversation(s rowScanner, extra ...any) (*model.Conversation, error) {
	c := &model.Conversation{}
	var emails, names pq.StringArray
	var lastDate sql.NullTime
	dest := append([]any{&c.ID, &emails, &names, &c.PairKey, &c.EventID, &c.LastMessage, &lastDate, &c.CreatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	c.ParticipantEmails = []string(emails)
	c.ParticipantNames = []string(names)
	if lastDate.Valid {
		t := lastDate.Time
		c.LastMessageDate = &t
	}
	return c, nil
}

// FindOrCreate はpair_keyで会話を検索し、なければ作成する。
// 既存行は DO UPDATE の空更新で返し、xmax = 0 で新規作成かどうかを判定する。
func (r *PostgresConversationRepo) FindOrCreate(ctx context.Context, conv *model.Conversation) (*model.Conversation, bool, error) {
	var created bool
	stored, err := scanConversation(r.db.QueryRowContext(ctx,
		`INSERT INTO conversations (id, participant_emails, participant_names, pair_key, event_id, last_message, created_at)
		 VALUES ($1, $2, $3, $4, $5, '', $6)
		 ON CONFLICT (pair_key) DO UPDATE SET pair_key = EXCLUDED.pair_key
		 RETURNING `+conversationColumns+`, (xmax = 0)`,
		newRecordID(), pq.StringArray(conv.ParticipantEmails), pq.StringArray(conv.ParticipantNames),
		conv.PairKey, conv.EventID, now(),
	), &created)
	if err != nil {
		return nil, false, fmt.Errorf("会話の作成に失敗しました: %w", err)
	}
	return stored, created, nil
}

// FindByID は指定IDの会話を取得する。
func (r *PostgresConversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	if !isRecordID(id) {
		return nil, nil
	}
	c, err := scanConversation(r.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("会話の取得に失敗しました: %w", err)
	}
	return c, nil
}

// ListForParticipant は参加している会話を閲覧者宛の未読件数付きで返す。
// 既定の並び順は最終メッセージ日時の降順。
func (r *PostgresConversationRepo) ListForParticipant(ctx context.Context, email string, opts ListOptions) ([]model.ConversationSummary, error) {
	order, err := orderClause(opts.OrderBy, "-last_message_date", "last_message_date", "created_at")
	if err != nil {
		return nil, err
	}
	b := psql.Select(conversationColumns).
		Column(`(SELECT COUNT(*) FROM messages m
		  WHERE m.conversation_id = conversations.id AND NOT m.is_read AND lower(m.sender_email) <> lower(?)) AS unread_count`, email).
		From("conversations").
		Where("? = ANY (participant_emails)", email).
		OrderBy(order+" NULLS LAST", "id ASC")
	if opts.Limit > 0 {
		b = b.Limit(uint64(opts.Limit))
	}

	var list []model.ConversationSummary
	err = queryRows(ctx, r.db, b, func(s rowScanner) error {
		var unread int
		c, err := scanConversation(s, &unread)
		if err != nil {
			return err
		}
		list = append(list, model.ConversationSummary{Conversation: *c, UnreadCount: unread})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("会話一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// AppendMessage はメッセージ追加と会話プレビュー更新を同一トランザクションで行う。
func (r *PostgresConversationRepo) AppendMessage(ctx context.Context, msg *model.Message) error {
	msg.ID = newRecordID()
	msg.CreatedAt = now()
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, conversation_id, sender_email, sender_name, content, is_read, created_at)
			 VALUES ($1, $2, $3, $4, $5, false, $6)`,
			msg.ID, msg.ConversationID, msg.SenderEmail, msg.SenderName, msg.Content, msg.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("メッセージの作成に失敗しました: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE conversations SET last_message = $2, last_message_date = $3 WHERE id = $1`,
			msg.ConversationID, msg.Content, msg.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("会話プレビューの更新に失敗しました: %w", err)
		}
		return nil
	})
}

// ListMessages は会話のメッセージを作成日時の昇順で返す。
func (r *PostgresConversationRepo) ListMessages(ctx context.Context, conversationID string, since *time.Time) ([]model.Message, error) {
	if !isRecordID(conversationID) {
		return nil, nil
	}
	b := psql.Select("id", "conversation_id", "sender_email", "sender_name", "content", "is_read", "created_at").
		From("messages").
		Where("conversation_id = ?", conversationID).
		OrderBy("created_at ASC", "id ASC")
	if since != nil {
		b = b.Where("created_at > ?", *since)
	}

	var list []model.Message
	err := queryRows(ctx, r.db, b, func(s rowScanner) error {
		var m model.Message
		if err := s.Scan(&m.ID, &m.ConversationID, &m.SenderEmail, &m.SenderName, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
			return err
		}
		list = append(list, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// MarkReadForViewer は閲覧者以外が送信した未読メッセージを1文で既読にする。
func (r *PostgresConversationRepo) MarkReadForViewer(ctx context.Context, conversationID, viewerEmail string) (int64, error) {
	if !isRecordID(conversationID) {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_read = true
		 WHERE conversation_id = $1 AND NOT is_read AND lower(sender_email) <> lower($2)`,
		conversationID, viewerEmail)
	if err != nil {
		return 0, fmt.Errorf("メッセージの既読化に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("影響行数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ ConversationRepository = (*PostgresConversationRepo)(nil)
