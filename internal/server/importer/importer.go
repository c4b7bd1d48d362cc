// Package importer reconciles staff accounts from a tabular file.
//
// A run parses the file, validates every row (one bad row rejects the file),
// classifies each row against the stored user, and then applies the result.
// Creates provision the identity account first and only then write the user
// record. Updates write the user record first, through the batch executor,
// and mirror to the identity provider afterwards; a mirror failure is a
// warning. Preview stops after classification.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/identity"
	"github.com/dmitrijs2005/staffkeeper/internal/logging"
	"github.com/dmitrijs2005/staffkeeper/internal/server/batch"
	"github.com/dmitrijs2005/staffkeeper/internal/server/diff"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/patch"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/users"
	"github.com/google/uuid"
)

// RejectedError is returned when validation fails. Nothing was written.
type RejectedError struct {
	Errors []*common.ValidationError
}

func (e *RejectedError) Error() string {
	if len(e.Errors) == 1 {
		return "import rejected: " + e.Errors[0].Error()
	}
	return fmt.Sprintf("import rejected: %d invalid rows, first: %v", len(e.Errors), e.Errors[0])
}

func (e *RejectedError) Is(target error) bool { return target == common.ErrValidation }

// Importer runs import previews and applies.
type Importer struct {
	users    users.Repository
	provider identity.Provider
	executor *batch.Executor
	rules    Rules
	now      func() time.Time
	logger   logging.Logger
}

// New returns an Importer.
func New(u users.Repository, p identity.Provider, ex *batch.Executor, rules Rules, now func() time.Time, l logging.Logger) *Importer {
	if now == nil {
		now = time.Now
	}
	return &Importer{users: u, provider: p, executor: ex, rules: rules, now: now, logger: l.With("module", "importer")}
}

type planned struct {
	row      Row
	existing *models.User
	result   diff.Result
}

// Preview parses, validates and classifies f without writing anything.
func (im *Importer) Preview(ctx context.Context, f File) (*Report, error) {
	rep := newReport(true)

	plan, err := im.plan(ctx, f, rep)
	if err != nil {
		return rep, err
	}

	for _, p := range plan {
		d := Detail{Row: p.row.Row, UserName: p.row.UserName, Changes: p.result.Changes}
		switch p.result.Kind {
		case diff.Create:
			d.Action = ActionCreate
			rep.Created++
		case diff.Update:
			d.Action = ActionUpdate
			rep.Updated++
		case diff.Skip:
			d.Action = ActionSkip
			rep.Skipped++
		case diff.Conflict:
			d.Action = ActionConflict
			d.Message = "identity key differs from the stored record"
			rep.fail(p.row.Row, p.row.UserName, string(ColUserName), d.Message)
		}
		rep.Details = append(rep.Details, d)
	}
	rep.sort()
	return rep, nil
}

// Apply runs the full pipeline. actor is stamped on written records.
// Partial success is reported, not rolled back.
func (im *Importer) Apply(ctx context.Context, f File, actor string) (*Report, error) {
	rep := newReport(false)

	plan, err := im.plan(ctx, f, rep)
	if err != nil {
		return rep, err
	}

	var updates []planned
	for _, p := range plan {
		switch p.result.Kind {
		case diff.Create:
			im.create(ctx, p, actor, rep)
		case diff.Update:
			updates = append(updates, p)
		case diff.Skip:
			rep.Skipped++
			rep.Details = append(rep.Details, Detail{Row: p.row.Row, UserName: p.row.UserName, Action: ActionSkip})
		case diff.Conflict:
			msg := common.NewConflictError("user", p.row.UserName, "identity key differs from the stored record").Error()
			rep.fail(p.row.Row, p.row.UserName, string(ColUserName), msg)
			rep.Details = append(rep.Details, Detail{Row: p.row.Row, UserName: p.row.UserName, Action: ActionConflict, Message: msg, Changes: p.result.Changes})
		}
	}

	im.update(ctx, updates, actor, rep)

	rep.sort()
	im.logger.Info(ctx, "import applied", "file", f.Name,
		"created", rep.Created, "updated", rep.Updated, "skipped", rep.Skipped,
		"errors", len(rep.Errors), "warnings", len(rep.Warnings))
	return rep, nil
}

// plan runs parse, validate and classify. Any failure rejects the report.
func (im *Importer) plan(ctx context.Context, f File, rep *Report) ([]planned, error) {
	sheet, err := Parse(f)
	if err != nil {
		rep.Rejected = true
		var ve *common.ValidationError
		if errors.As(err, &ve) {
			rep.fail(0, "", ve.Field, ve.Message)
		}
		return nil, err
	}

	rows, verrs := Validate(sheet.Rows, im.rules)
	if len(verrs) > 0 {
		rep.Rejected = true
		for _, ve := range verrs {
			rep.fail(ve.Row, usernameAt(sheet, ve.Row), ve.Field, ve.Message)
		}
		im.logger.Warn(ctx, "import rejected", "file", f.Name, "invalid", len(verrs))
		return nil, &RejectedError{Errors: verrs}
	}

	plan := make([]planned, 0, len(rows))
	for _, row := range rows {
		existing, err := im.users.GetUserByLogin(ctx, row.UserName)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			rep.Rejected = true
			return nil, common.NewAuthoritativeError("lookup "+row.UserName, err)
		}
		if err != nil {
			existing = nil
		}

		plan = append(plan, planned{row: row, existing: existing, result: diff.UserSchema.Classify(row.User(), existing)})
	}
	return plan, nil
}

func usernameAt(s *Sheet, row int) string {
	if row > 0 && row <= len(s.Rows) {
		return s.Rows[row-1].Values[ColUserName]
	}
	return ""
}

// create provisions the identity account, then writes the user. The account
// is the gate: if it cannot be created no user record is written.
func (im *Importer) create(ctx context.Context, p planned, actor string, rep *Report) {
	row := p.row
	email := identity.Email(row.UserName, im.rules.EmailDomain)

	extID, err := im.provider.CreateAccount(ctx, identity.Credentials{
		Email:       email,
		Password:    row.Credential,
		DisplayName: row.Name,
	})
	if err != nil {
		im.logger.Error(ctx, "provisioning failed", "row", row.Row, "username", row.UserName, "error", err)
		msg := fmt.Sprintf("provisioning failed: %v", err)
		rep.fail(row.Row, row.UserName, "", msg)
		rep.Details = append(rep.Details, Detail{Row: row.Row, UserName: row.UserName, Action: ActionError, Message: msg})
		return
	}

	now := im.now().UTC()
	claims := models.Claims{Role: row.Role, UserName: row.UserName, LastSyncedAt: now}
	if err := im.provider.SetClaims(ctx, extID, claims); err != nil {
		be := common.NewBestEffortError("set claims", err)
		im.logger.Warn(ctx, "claims not set", "row", row.Row, "username", row.UserName, "error", be)
		rep.warn(row.Row, row.UserName, be.Error())
	}

	u := row.User()
	u.ID = uuid.NewString()
	u.ExternalID = extID
	u.CreatedAt, u.UpdatedAt = now, now
	u.CreatedBy, u.UpdatedBy = actor, actor

	if _, err := im.users.Create(ctx, &u); err != nil {
		ae := common.NewAuthoritativeError("create user", err)
		im.logger.Error(ctx, "user record not written", "row", row.Row, "username", row.UserName, "externalId", extID, "error", ae)
		msg := fmt.Sprintf("%v (identity account %s exists)", ae, extID)
		rep.fail(row.Row, row.UserName, "", msg)
		rep.Details = append(rep.Details, Detail{Row: row.Row, UserName: row.UserName, Action: ActionError, Message: msg})
		return
	}

	rep.Created++
	rep.Details = append(rep.Details, Detail{Row: row.Row, UserName: row.UserName, Action: ActionCreate})
}

// update commits the record changes in batch groups, then mirrors each
// committed row to the identity provider.
func (im *Importer) update(ctx context.Context, ps []planned, actor string, rep *Report) {
	if len(ps) == 0 {
		return
	}

	now := im.now().UTC()
	muts := make([]batch.Mutation, 0, len(ps))
	for _, p := range ps {
		fields := patch.Fields{"updated_at": now, "updated_by": actor}
		for _, c := range p.result.Changes {
			fields[c.Field] = c.To
		}
		muts = append(muts, batch.Mutation{Target: batch.TargetUsers, Op: batch.OpUpdate, ID: p.existing.ID, Fields: fields})
	}

	res, err := im.executor.Execute(ctx, muts)
	for i, p := range ps {
		row := p.row
		if i >= res.Committed {
			msg := fmt.Sprintf("not applied: %v", err)
			rep.fail(row.Row, row.UserName, "", msg)
			rep.Details = append(rep.Details, Detail{Row: row.Row, UserName: row.UserName, Action: ActionError, Message: msg, Changes: p.result.Changes})
			continue
		}

		rep.Updated++
		rep.Details = append(rep.Details, Detail{Row: row.Row, UserName: row.UserName, Action: ActionUpdate, Changes: p.result.Changes})
		im.mirror(ctx, p, now, rep)
	}
}

// mirror copies a committed update to the identity provider. Failures are
// best-effort warnings: the user record is already authoritative.
func (im *Importer) mirror(ctx context.Context, p planned, now time.Time, rep *Report) {
	row := p.row
	if !p.existing.HasExternalIdentity() {
		rep.warn(row.Row, row.UserName, common.NewBestEffortError("mirror", common.ErrNoExternalIdentity).Error())
		return
	}
	extID := p.existing.ExternalID

	claims := models.Claims{Role: row.Role, UserName: row.UserName, LastSyncedAt: now}
	if err := im.provider.SetClaims(ctx, extID, claims); err != nil {
		be := common.NewBestEffortError("set claims", err)
		im.logger.Warn(ctx, "claims mirror failed", "row", row.Row, "username", row.UserName, "error", be)
		rep.warn(row.Row, row.UserName, be.Error())
	}

	for _, c := range p.result.Changes {
		if c.Field != "name" {
			continue
		}
		name := c.To
		if err := im.provider.UpdateAccount(ctx, extID, identity.AccountUpdate{DisplayName: &name}); err != nil {
			be := common.NewBestEffortError("update account", err)
			im.logger.Warn(ctx, "account mirror failed", "row", row.Row, "username", row.UserName, "error", be)
			rep.warn(row.Row, row.UserName, be.Error())
		}
	}
}
