package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/niallclarke-spec/couponpro-sub002/internal/audit"
	"github.com/niallclarke-spec/couponpro-sub002/internal/config"
	"github.com/niallclarke-spec/couponpro-sub002/internal/directory"
	"github.com/niallclarke-spec/couponpro-sub002/internal/identity"
	"github.com/niallclarke-spec/couponpro-sub002/internal/routes"
)

// Handlers is the registered endpoint surface behind the authorization gate.
// Business payload shapes are owned by each handler, not by the gate.
type Handlers struct {
	cfg    config.Config
	dir    *directory.CachedDirectory
	ring   *audit.Ring
	logger *zap.Logger
}

// New constructs the handler set.
func New(cfg config.Config, dir *directory.CachedDirectory, ring *audit.Ring, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.L()
	}
	return &Handlers{cfg: cfg, dir: dir, ring: ring, logger: logger}
}

// Registry maps every symbolic route-table name to its handler. The route
// table validates against this at startup.
func (h *Handlers) Registry() routes.Registry {
	return routes.Registry{
		"health":        h.Health,
		"public_config": h.PublicConfig,

		"login_shell":    h.shell("login.html"),
		"admin_shell":    h.shell("admin.html"),
		"app_shell":      h.shell("app.html"),
		"setup_shell":    h.shell("setup.html"),
		"coupon_shell":   h.shell("coupon.html"),
		"campaign_shell": h.shell("campaign.html"),

		"telegram_webhook": h.TelegramWebhook,
		"stripe_webhook":   h.StripeWebhook,

		"onboarding_status":        h.OnboardingStatus,
		"onboarding_complete_step": h.OnboardingCompleteStep,

		"campaigns_list":      h.CampaignsList,
		"campaigns_create":    h.CampaignsCreate,
		"campaigns_detail":    h.CampaignsDetail,
		"coupons_list":        h.CouponsList,
		"forex_signals":       h.ForexSignals,
		"forex_signal_detail": h.ForexSignalDetail,

		"bot_stats":        h.BotStats,
		"auth_diagnostics": h.AuthDiagnostics,
	}
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) PublicConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"environment": h.cfg.Environment,
		"service":     h.cfg.ServiceName,
	})
}

func (h *Handlers) shell(page string) gin.HandlerFunc {
	path := filepath.Join(h.cfg.StaticDir, page)
	return func(c *gin.Context) {
		c.File(path)
	}
}

// TelegramWebhook acknowledges bot updates. The caller is Telegram itself;
// the path is webhook-exempt and carries no session.
func (h *Handlers) TelegramWebhook(c *gin.Context) {
	h.logger.Debug("telegram webhook received", zap.String("ip", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) StripeWebhook(c *gin.Context) {
	h.logger.Debug("stripe webhook received", zap.String("ip", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handlers) OnboardingStatus(c *gin.Context) {
	res, _ := identity.FromContext(c)
	if res.TenantID == "" {
		// Verified principal without a tenant yet; nothing to report.
		c.JSON(http.StatusOK, gin.H{"setup_status": directory.SetupStatus{}})
		return
	}
	status, err := h.dir.SetupStatus(c.Request.Context(), res.TenantID)
	if err != nil {
		h.logger.Error("onboarding status lookup failed", zap.String("tenant_id", res.TenantID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "setup status unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant_id": res.TenantID, "setup_status": status})
}

func (h *Handlers) OnboardingCompleteStep(c *gin.Context) {
	res, _ := identity.FromContext(c)
	if res.TenantID != "" {
		if err := h.dir.Invalidate(c.Request.Context(), res.TenantID); err != nil {
			h.logger.Warn("setup status invalidation failed", zap.String("tenant_id", res.TenantID), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) CampaignsList(c *gin.Context) {
	res, _ := identity.FromContext(c)
	c.JSON(http.StatusOK, gin.H{"tenant_id": res.TenantID, "campaigns": []gin.H{}})
}

func (h *Handlers) CampaignsCreate(c *gin.Context) {
	c.JSON(http.StatusCreated, gin.H{"ok": true})
}

func (h *Handlers) CampaignsDetail(c *gin.Context) {
	id := strings.TrimPrefix(c.Request.URL.Path, "/api/campaigns/")
	c.JSON(http.StatusOK, gin.H{"campaign_id": id})
}

func (h *Handlers) CouponsList(c *gin.Context) {
	res, _ := identity.FromContext(c)
	c.JSON(http.StatusOK, gin.H{"tenant_id": res.TenantID, "coupons": []gin.H{}})
}

func (h *Handlers) ForexSignals(c *gin.Context) {
	res, _ := identity.FromContext(c)
	c.JSON(http.StatusOK, gin.H{"tenant_id": res.TenantID, "signals": []gin.H{}})
}

func (h *Handlers) ForexSignalDetail(c *gin.Context) {
	id := strings.TrimPrefix(c.Request.URL.Path, "/api/forex-signals/")
	c.JSON(http.StatusOK, gin.H{"signal_id": id})
}

func (h *Handlers) BotStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bots": []gin.H{}})
}

// AuthDiagnostics exposes the audit ring; operator-only by policy.
func (h *Handlers) AuthDiagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"denials": h.ring.Snapshot()})
}
