package protocol

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/model"
)

const (
	pathEditors = model.FieldACL + "." + model.ACLEditors
	pathViewers = model.FieldACL + "." + model.ACLViewers
)

// AddToACL grants email the editor or viewer role on doc. Holding the other
// role turns the grant into a move within one write; already holding the
// requested role succeeds without a write.
func (c *Client) AddToACL(ctx context.Context, doc model.Expense, email string, role model.Role) Result[model.Expense] {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fail[model.Expense](fmt.Errorf("empty email: %w", errs.ErrInvalidArgument))
	}

	var target, other string
	var have, haveOther bool
	switch role {
	case model.RoleEditor:
		target, other = pathEditors, pathViewers
		have, haveOther = slices.Contains(doc.ACL.Editors, email), slices.Contains(doc.ACL.Viewers, email)
	case model.RoleViewer:
		target, other = pathViewers, pathEditors
		have, haveOther = slices.Contains(doc.ACL.Viewers, email), slices.Contains(doc.ACL.Editors, email)
	default:
		return fail[model.Expense](fmt.Errorf("role %q cannot be granted: %w", role, errs.ErrInvalidArgument))
	}
	if !model.RoleOf(doc, c.caller).CanEdit() {
		return refuse[model.Expense](c, "share", doc.ID)
	}
	if have {
		return ok(doc)
	}

	ws := []model.FieldWrite{model.ArrayUnion(target, email)}
	if haveOther {
		ws = append(ws, model.ArrayRemove(other, email))
	}
	return c.update(ctx, "share", doc, ws...)
}

// RemoveFromACL revokes every role email holds on doc.
func (c *Client) RemoveFromACL(ctx context.Context, doc model.Expense, email string) Result[model.Expense] {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fail[model.Expense](fmt.Errorf("empty email: %w", errs.ErrInvalidArgument))
	}
	return c.update(ctx, "revoke", doc,
		model.ArrayRemove(pathEditors, email),
		model.ArrayRemove(pathViewers, email),
	)
}
