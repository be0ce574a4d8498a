package management

import (
	"context"
	"encoding/json"
	"strings"

	"okapi/internal/constants"
	"okapi/internal/recorder"
	"okapi/internal/rule"
	pkgerrors "okapi/pkg/errors"
)

// AudienceFilterValidator checks an audience filter expression at write
// time, before a rule reaches the scheduler.
type AudienceFilterValidator interface {
	ValidateFilterExpression(expression string) error
}

type service struct {
	repo                Repository
	executionStore      recorder.Store
	versioningRepo      VersioningRepository
	configEventProducer *ConfigEventProducer
	filterValidator     AudienceFilterValidator
	auditEnabled        bool
}

type ServiceOption func(*service)

func WithVersioning(versioningRepo VersioningRepository) ServiceOption {
	return func(s *service) {
		s.versioningRepo = versioningRepo
		s.auditEnabled = true
	}
}

func WithConfigEvents(configEventProducer *ConfigEventProducer) ServiceOption {
	return func(s *service) {
		s.configEventProducer = configEventProducer
	}
}

func WithExecutionStore(store recorder.Store) ServiceOption {
	return func(s *service) {
		s.executionStore = store
	}
}

func WithAudienceFilterValidator(v AudienceFilterValidator) ServiceOption {
	return func(s *service) {
		s.filterValidator = v
	}
}

func NewService(repo Repository, opts ...ServiceOption) Service {
	s := &service{
		repo:         repo,
		auditEnabled: false,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.versioningRepo != nil {
		s.auditEnabled = true
	}

	return s
}

func (s *service) CreateTriggerRule(ctx context.Context, req CreateTriggerRuleRequest) (*rule.TriggerRule, error) {
	tr := &rule.TriggerRule{
		Name:           req.Name,
		Category:       req.Category,
		Conditions:     req.Conditions,
		Actions:        req.Actions,
		Schedule:       req.Schedule,
		AudienceFilter: req.AudienceFilter,
		Enabled:        getEnabledValue(req.Enabled),
	}

	if err := s.validateRule(tr); err != nil {
		return nil, err
	}

	if err := s.repo.CreateTriggerRule(ctx, tr); err != nil {
		if pkgerrors.IsConflict(err) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	s.createVersionAndAudit(ctx, tr, "create", nil)
	s.publishConfigEvent(ctx, "create", tr.ID)

	return tr, nil
}

func (s *service) ListTriggerRules(ctx context.Context) ([]rule.TriggerRule, error) {
	rules, err := s.repo.ListTriggerRules(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return rules, nil
}

func (s *service) GetTriggerRule(ctx context.Context, id string) (*rule.TriggerRule, error) {
	tr, err := s.repo.GetTriggerRule(ctx, id)
	if err != nil {
		return nil, s.handleNotFoundError(err, id)
	}
	if tr == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return tr, nil
}

func (s *service) UpdateTriggerRule(ctx context.Context, id string, req UpdateTriggerRuleRequest) (*rule.TriggerRule, error) {
	tr, err := s.repo.GetTriggerRule(ctx, id)
	if err != nil {
		return nil, s.handleNotFoundError(err, id)
	}
	if tr == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	oldValue, _ := s.ruleToMap(tr)
	s.applyUpdate(tr, req)

	if err := s.validateRule(tr); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateTriggerRule(ctx, tr); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	s.createVersionAndAudit(ctx, tr, "update", oldValue)
	s.publishConfigEvent(ctx, "update", tr.ID)

	return tr, nil
}

// DeleteTriggerRule removes a rule that never ran; a rule with
// execution history is disabled instead, so its records stay
// attributable.
func (s *service) DeleteTriggerRule(ctx context.Context, id string) (*DeleteResponse, error) {
	tr, err := s.repo.GetTriggerRule(ctx, id)
	if err != nil {
		return nil, s.handleNotFoundError(err, id)
	}
	if tr == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	oldValue, _ := s.ruleToMap(tr)

	if tr.ExecutionCount > 0 {
		if err := s.repo.SetEnabled(ctx, id, false); err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
		}

		s.auditAction(ctx, id, "disable", oldValue, nil)
		s.publishConfigEvent(ctx, "disable", id)

		return &DeleteResponse{ID: id, Disabled: true}, nil
	}

	if err := s.repo.DeleteTriggerRule(ctx, id); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	s.auditAction(ctx, id, "delete", oldValue, nil)
	s.publishConfigEvent(ctx, "delete", id)

	return &DeleteResponse{ID: id, Deleted: true}, nil
}

func (s *service) SetTriggerRuleEnabled(ctx context.Context, id string, enabled bool) (*rule.TriggerRule, error) {
	tr, err := s.repo.GetTriggerRule(ctx, id)
	if err != nil {
		return nil, s.handleNotFoundError(err, id)
	}
	if tr == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	if tr.Enabled == enabled {
		return tr, nil
	}

	oldValue, _ := s.ruleToMap(tr)

	if err := s.repo.SetEnabled(ctx, id, enabled); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	tr.Enabled = enabled

	action := "disable"
	if enabled {
		action = "enable"
	}

	newValue, _ := s.ruleToMap(tr)
	s.auditAction(ctx, id, action, oldValue, newValue)
	s.publishConfigEvent(ctx, action, id)

	return tr, nil
}

func (s *service) PreviewTriggerRule(ctx context.Context, id string) (*PreviewResponse, error) {
	tr, err := s.GetTriggerRule(ctx, id)
	if err != nil {
		return nil, err
	}

	return &PreviewResponse{RuleID: tr.ID, Preview: rule.Preview(tr)}, nil
}

func (s *service) PreviewDefinition(ctx context.Context, req CreateTriggerRuleRequest) (*PreviewResponse, error) {
	tr := &rule.TriggerRule{
		Name:           req.Name,
		Category:       req.Category,
		Conditions:     req.Conditions,
		Actions:        req.Actions,
		Schedule:       req.Schedule,
		AudienceFilter: req.AudienceFilter,
	}

	if err := s.validateRule(tr); err != nil {
		return nil, err
	}

	return &PreviewResponse{Preview: rule.Preview(tr)}, nil
}

func (s *service) ListExecutions(ctx context.Context, ruleID string, limit int) ([]recorder.ExecutionRecord, error) {
	if s.executionStore == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "execution store not configured")
	}

	if _, err := s.GetTriggerRule(ctx, ruleID); err != nil {
		return nil, err
	}

	records, err := s.executionStore.ListByRule(ctx, ruleID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return records, nil
}

func (s *service) GetRuleVersions(ctx context.Context, ruleID string) ([]RuleVersion, error) {
	if s.versioningRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "versioning not enabled")
	}
	versions, err := s.versioningRepo.GetVersions(ctx, ruleID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return versions, nil
}

func (s *service) GetAuditLogs(ctx context.Context, ruleID *string, limit int) ([]AuditLog, error) {
	if s.versioningRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "audit logging not enabled")
	}
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	logs, err := s.versioningRepo.GetAuditLogs(ctx, ruleID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return logs, nil
}

func (s *service) validateRule(tr *rule.TriggerRule) error {
	if err := rule.Validate(tr); err != nil {
		return err
	}

	if tr.AudienceFilter != "" && s.filterValidator != nil {
		if err := s.filterValidator.ValidateFilterExpression(tr.AudienceFilter); err != nil {
			return pkgerrors.ErrInvalidRule.WithCause(err).WithDetail("message", "invalid audience filter")
		}
	}

	return nil
}

func (s *service) applyUpdate(tr *rule.TriggerRule, req UpdateTriggerRuleRequest) {
	if req.Name != nil {
		tr.Name = *req.Name
	}
	if req.Conditions != nil {
		tr.Conditions = *req.Conditions
	}
	if req.Actions != nil {
		tr.Actions = *req.Actions
	}
	if req.Schedule != nil {
		tr.Schedule = *req.Schedule
	}
	if req.AudienceFilter != nil {
		tr.AudienceFilter = *req.AudienceFilter
	}
	if req.Enabled != nil {
		tr.Enabled = *req.Enabled
	}
}

func (s *service) handleNotFoundError(err error, id string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "not found") {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
}

func (s *service) createVersionAndAudit(ctx context.Context, tr *rule.TriggerRule, action string, oldValue map[string]interface{}) {
	if !s.auditEnabled || s.versioningRepo == nil {
		return
	}

	ruleJSON, err := ruleToJSON(tr)
	if err != nil {
		return
	}

	version := s.buildVersion(ctx, tr, ruleJSON)
	if err := s.versioningRepo.CreateVersion(ctx, version); err != nil {
		return
	}

	newValue, err := s.ruleToMap(tr)
	if err != nil {
		return
	}

	s.auditAction(ctx, tr.ID, action, oldValue, newValue)
}

func (s *service) buildVersion(ctx context.Context, tr *rule.TriggerRule, ruleJSON string) *RuleVersion {
	version := 1
	if nextVersion, err := s.versioningRepo.GetNextVersion(ctx, tr.ID); err == nil {
		version = nextVersion
	}

	return &RuleVersion{
		RuleID:    tr.ID,
		RuleData:  ruleJSON,
		Version:   version,
		ChangedBy: getChangedBy(ctx),
	}
}

func (s *service) auditAction(ctx context.Context, ruleID, action string, oldValue, newValue map[string]interface{}) {
	if !s.auditEnabled || s.versioningRepo == nil {
		return
	}

	auditLog := &AuditLog{
		RuleID:    &ruleID,
		Action:    action,
		OldValue:  oldValue,
		NewValue:  newValue,
		ChangedBy: getChangedBy(ctx),
	}
	_ = s.versioningRepo.CreateAuditLog(ctx, auditLog)
}

func (s *service) ruleToMap(tr *rule.TriggerRule) (map[string]interface{}, error) {
	ruleData, err := json.Marshal(tr)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(ruleData, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) publishConfigEvent(ctx context.Context, action, ruleID string) {
	if s.configEventProducer != nil {
		_ = s.configEventProducer.PublishRuleEvent(ctx, action, ruleID, getChangedBy(ctx))
	}
}

func getEnabledValue(reqEnabled *bool) bool {
	if reqEnabled == nil {
		return true
	}
	return *reqEnabled
}

func getChangedBy(ctx context.Context) string {
	if userID := ctx.Value("user_id"); userID != nil {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return "system"
}
