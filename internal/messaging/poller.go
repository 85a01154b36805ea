package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/sundays/internal/model"
)

// DefaultPollInterval は会話を開いている間のメッセージ再取得間隔。
const DefaultPollInterval = 5 * time.Second

// DefaultCommitWindow は作成日時の採番からコミットまでに掛かりうる時間の上限。
// メッセージの作成日時はトランザクション開始前に決まるため、後から採番された
// メッセージが先にコミットされることがある。カーソルからこの幅だけ遡って再取得し、
// 配信済みのIDを除くことで遅れてコミットされたメッセージも配信する。
// 送信はリクエストタイムアウト内に終わるため、それより長くとる。
const DefaultCommitWindow = 30 * time.Second

// FetchFunc は since より後のメッセージを取得する。since が nil の場合は全件。
type FetchFunc func(ctx context.Context, since *time.Time) ([]model.Message, error)

// Poller は会話のメッセージを一定間隔で取得する。
// 取得は1つのgoroutineで順に行うため同時に2つ実行されることはない。
// 同じメッセージは2回配信せず、遅れてコミットされたメッセージも commitWindow の範囲内なら配信する。
type Poller struct {
	interval     time.Duration
	commitWindow time.Duration
	fetch        FetchFunc

	// floor は開始時にクライアントが既に持っている範囲の上端
	floor *time.Time
	since *time.Time
	// seen は commitWindow 内で配信済みのメッセージID
	seen map[string]time.Time
}

// NewPoller はPollerを生成する。interval が0以下の場合は既定値を使う。
func NewPoller(interval time.Duration, fetch FetchFunc) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		interval:     interval,
		commitWindow: DefaultCommitWindow,
		fetch:        fetch,
		seen:         make(map[string]time.Time),
	}
}

// Since は配信済みメッセージの最新の作成日時を返す。
func (p *Poller) Since() *time.Time {
	return p.since
}

// Run は ctx がキャンセルされるまで一定間隔で取得し、新しいメッセージを deliver に渡す。
// 開始時の since 以前のメッセージはクライアントが保持しているものとして配信しない。
// 取得エラーはログに残して次の周期で再試行し、deliver がエラーを返した場合は停止する。
func (p *Poller) Run(ctx context.Context, since *time.Time, deliver func([]model.Message) error) error {
	p.floor = since
	p.since = since

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := p.poll(ctx, deliver); err != nil {
			return err
		}
	}
}

// poll は1回分の取得と配信を行う。
func (p *Poller) poll(ctx context.Context, deliver func([]model.Message) error) error {
	messages, err := p.fetch(ctx, p.fetchFrom())
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("メッセージの再取得に失敗しました", slog.String("error", err.Error()))
		return nil
	}

	fresh := messages[:0:0]
	for _, m := range messages {
		if _, ok := p.seen[m.ID]; ok {
			continue
		}
		if p.floor != nil && !m.CreatedAt.After(*p.floor) {
			continue
		}
		fresh = append(fresh, m)
	}
	if len(fresh) == 0 {
		return nil
	}

	if err := deliver(fresh); err != nil {
		return err
	}
	for _, m := range fresh {
		p.seen[m.ID] = m.CreatedAt
		if p.since == nil || m.CreatedAt.After(*p.since) {
			t := m.CreatedAt
			p.since = &t
		}
	}
	p.forget()
	return nil
}

// fetchFrom は取得の起点を返す。カーソルから commitWindow だけ遡る。
func (p *Poller) fetchFrom() *time.Time {
	if p.since == nil {
		return nil
	}
	from := p.since.Add(-p.commitWindow)
	return &from
}

// forget は再取得範囲から外れた配信済みIDを捨てる。
func (p *Poller) forget() {
	from := p.fetchFrom()
	if from == nil {
		return
	}
	for id, created := range p.seen {
		if !created.After(*from) {
			delete(p.seen, id)
		}
	}
}
