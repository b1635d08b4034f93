// Package notify sends Telegram alerts for notable token events.
package notify

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pump-vision/internal/domain"
	"pump-vision/internal/tracker"
)

const (
	defaultRiskThreshold = 80.0
	defaultCooldown      = 10 * time.Minute
)

// sender is the BotAPI surface the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Options configures a Notifier.
type Options struct {
	BotToken string
	// ChatID is the numeric target chat.
	ChatID string
	// RiskThreshold triggers high-risk alerts. Zero uses 80.
	RiskThreshold float64
	// Cooldown rate-limits repeated risk alerts per token. Zero uses 10m.
	Cooldown time.Duration
	Logger   *log.Logger
}

// Notifier consumes tracker updates and pushes alerts. Graduation fires
// once per token; risk alerts are rate-limited per token.
type Notifier struct {
	bot           sender
	chatID        int64
	riskThreshold float64
	cooldown      time.Duration
	logger        *log.Logger
	now           func() time.Time

	graduated     map[string]bool
	lastRiskAlert map[string]time.Time
}

// NewNotifier creates a Notifier backed by the Telegram Bot API.
func NewNotifier(opts Options) (*Notifier, error) {
	if opts.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	bot, err := tgbotapi.NewBotAPI(opts.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	chatID, err := strconv.ParseInt(opts.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", opts.ChatID, err)
	}
	return newNotifier(bot, chatID, opts), nil
}

func newNotifier(bot sender, chatID int64, opts Options) *Notifier {
	riskThreshold := opts.RiskThreshold
	if riskThreshold == 0 {
		riskThreshold = defaultRiskThreshold
	}
	cooldown := opts.Cooldown
	if cooldown == 0 {
		cooldown = defaultCooldown
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Notifier{
		bot:           bot,
		chatID:        chatID,
		riskThreshold: riskThreshold,
		cooldown:      cooldown,
		logger:        logger,
		now:           time.Now,
		graduated:     make(map[string]bool),
		lastRiskAlert: make(map[string]time.Time),
	}
}

// Run consumes updates until the channel closes or ctx is cancelled.
func (n *Notifier) Run(ctx context.Context, updates <-chan tracker.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			n.handle(u)
		}
	}
}

// handle evaluates one update against the alert rules.
func (n *Notifier) handle(u tracker.Update) {
	if u.Token == nil {
		return
	}
	token := u.Token

	if token.Bucket() == domain.BucketGraduated && !n.graduated[token.Address] {
		n.graduated[token.Address] = true
		n.send(graduationMessage(token))
	}

	if token.Risk.TotalRisk >= n.riskThreshold {
		now := n.now()
		if last, ok := n.lastRiskAlert[token.Address]; !ok || now.Sub(last) >= n.cooldown {
			n.lastRiskAlert[token.Address] = now
			n.send(riskMessage(token, n.riskThreshold))
		}
	}
}

// send pushes one MarkdownV2 message; failures are logged, never retried
// into the update loop.
func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "MarkdownV2"
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Printf("telegram send: %v", err)
	}
}

func graduationMessage(t *domain.Token) string {
	return fmt.Sprintf("🎓 *%s* \\(%s\\) graduated\nMarket cap: %s SOL",
		escapeMarkdownV2(t.Symbol),
		escapeMarkdownV2(shortAddress(t.Address)),
		escapeMarkdownV2(fmt.Sprintf("%.2f", t.Quote.MarketCapSol)))
}

func riskMessage(t *domain.Token, threshold float64) string {
	return fmt.Sprintf("⚠️ *%s* \\(%s\\) risk score %s crossed %s\nHolders %s \\| Volume %s \\| Dev %s \\| Insider %s",
		escapeMarkdownV2(t.Symbol),
		escapeMarkdownV2(shortAddress(t.Address)),
		escapeMarkdownV2(fmt.Sprintf("%.1f", t.Risk.TotalRisk)),
		escapeMarkdownV2(fmt.Sprintf("%.0f", threshold)),
		escapeMarkdownV2(fmt.Sprintf("%.0f", t.Risk.HoldersRisk)),
		escapeMarkdownV2(fmt.Sprintf("%.0f", t.Risk.VolumeRisk)),
		escapeMarkdownV2(fmt.Sprintf("%.0f", t.Risk.DevWalletRisk)),
		escapeMarkdownV2(fmt.Sprintf("%.1f", t.Risk.InsiderRisk)))
}

func shortAddress(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:4] + "…" + addr[len(addr)-4:]
}

// escapeMarkdownV2 escapes the characters Telegram's MarkdownV2 parser
// treats as markup.
func escapeMarkdownV2(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]",
		"(", "\\(", ")", "\\)", "~", "\\~", "`", "\\`",
		">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
		"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}",
		".", "\\.", "!", "\\!",
	)
	return replacer.Replace(s)
}
