package service

import (
	"context"
	"fmt"

	"github.com/ct-protocol-manual/internal/navigation"
)

// contentDeleter routes two-step delete tokens to the owning service
type contentDeleter struct {
	diseases  DiseaseService
	notices   NoticeService
	protocols ProtocolService
	admin     AdminService
}

var _ navigation.Deleter = (*contentDeleter)(nil)

func newContentDeleter(diseases DiseaseService, notices NoticeService, protocols ProtocolService, admin AdminService) *contentDeleter {
	return &contentDeleter{
		diseases:  diseases,
		notices:   notices,
		protocols: protocols,
		admin:     admin,
	}
}

// CheckDelete reports whether the token's entity exists and may be deleted
func (d *contentDeleter) CheckDelete(ctx context.Context, actorID int64, token navigation.DeleteToken) (bool, error) {
	switch token.Kind {
	case navigation.KindDisease:
		v, err := d.diseases.Get(ctx, token.ID)
		return v != nil, err
	case navigation.KindNotice:
		v, err := d.notices.Get(ctx, token.ID)
		return v != nil, err
	case navigation.KindProtocol:
		v, err := d.protocols.Get(ctx, token.ID)
		return v != nil, err
	case navigation.KindUser:
		return d.admin.CheckDeleteUser(ctx, actorID, token.ID)
	default:
		return false, fmt.Errorf("unknown entity kind: %s", token.Kind)
	}
}

// Delete removes the token's entity
func (d *contentDeleter) Delete(ctx context.Context, actorID int64, token navigation.DeleteToken) (bool, error) {
	switch token.Kind {
	case navigation.KindDisease:
		return d.diseases.Delete(ctx, token.ID)
	case navigation.KindNotice:
		return d.notices.Delete(ctx, token.ID)
	case navigation.KindProtocol:
		return d.protocols.Delete(ctx, token.ID)
	case navigation.KindUser:
		return d.admin.DeleteUser(ctx, actorID, token.ID)
	default:
		return false, fmt.Errorf("unknown entity kind: %s", token.Kind)
	}
}
