package authcore

import (
	"context"
	"time"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLoginRateLimited      = "login_rate_limited"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshInvalid        = "refresh_invalid"
	auditEventRefreshRateLimited    = "refresh_rate_limited"
	auditEventRefreshReuseDetected  = "refresh_reuse_detected"
	auditEventLogout                = "logout"
	auditEventLogoutAll             = "logout_all"
	auditEventAccountCreated        = "account_created"
	auditEventAccountDuplicate      = "account_duplicate"
	auditEventPasswordChanged       = "password_changed"
	auditEventPasswordChangeDenied  = "password_change_denied"
	auditEventVerificationIssued    = "verification_issued"
	auditEventVerificationConfirmed = "verification_confirmed"
	auditEventVerificationRejected  = "verification_rejected"
	auditEventIPBanned              = "ip_banned"
)

// emitAudit queues an event on the dispatcher. A nil dispatcher (audit
// disabled) makes this a no-op; the request path never blocks here.
func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if e == nil || e.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	e.audit.Emit(ctx, event)
}

func (e *Engine) auditSuccess(ctx context.Context, eventType, principalID, tokenID string) {
	e.emitAudit(ctx, AuditEvent{
		EventType:   eventType,
		PrincipalID: principalID,
		TokenID:     tokenID,
		Success:     true,
	})
}

func (e *Engine) auditFailure(ctx context.Context, eventType, principalID string, err error) {
	event := AuditEvent{
		EventType:   eventType,
		PrincipalID: principalID,
	}
	if err != nil {
		event.Error = err.Error()
	}
	e.emitAudit(ctx, event)
}
