package service

import (
	"context"
	"fmt"
	"strings"

	"fiado/backend/internal/domain"
	"fiado/backend/internal/xid"
)

func (s *Service) AddClient(ctx context.Context, req domain.ClientCreateRequest) (domain.Client, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Alias = strings.TrimSpace(req.Alias)
	if err := s.check(req); err != nil {
		return domain.Client{}, err
	}

	client := domain.Client{
		ID:               xid.New("cli"),
		Name:             req.Name,
		Phone:            req.Phone,
		Alias:            req.Alias,
		CreditLimitCents: req.CreditLimitCents,
		CreatedAt:        s.timestamp(),
	}

	var created *domain.Client
	err := s.mutate(func() error {
		var err error
		created, err = s.repo.CreateClient(ctx, client)
		return err
	})
	if err != nil {
		return domain.Client{}, err
	}

	s.logAudit(ctx, "client.create", "client", created.ID, fmt.Sprintf("name=%s,limit=%d", created.Name, created.CreditLimitCents))
	return *created, nil
}

func (s *Service) UpdateClient(ctx context.Context, id string, req domain.ClientUpdateRequest) (domain.Client, error) {
	if err := s.check(req); err != nil {
		return domain.Client{}, err
	}

	var saved *domain.Client
	err := s.mutate(func() error {
		existing, err := s.repo.GetClient(ctx, strings.TrimSpace(id))
		if err != nil {
			return err
		}

		updated := existing.Client
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return invalid("name", "is required")
			}
			updated.Name = name
		}
		if req.Phone != nil {
			updated.Phone = strings.TrimSpace(*req.Phone)
		}
		if req.Alias != nil {
			updated.Alias = strings.TrimSpace(*req.Alias)
		}
		if req.CreditLimitCents != nil {
			updated.CreditLimitCents = *req.CreditLimitCents
		}

		saved, err = s.repo.UpdateClient(ctx, updated)
		return err
	})
	if err != nil {
		return domain.Client{}, err
	}

	s.logAudit(ctx, "client.update", "client", saved.ID, fmt.Sprintf("limit=%d", saved.CreditLimitCents))
	return *saved, nil
}

// DeleteClient removes the client and its whole movement history.
func (s *Service) DeleteClient(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := s.mutate(func() error { return s.repo.DeleteClient(ctx, id) }); err != nil {
		return err
	}
	s.logAudit(ctx, "client.delete", "client", id, "")
	return nil
}

func (s *Service) GetClient(ctx context.Context, id string) (domain.ClientBalance, error) {
	client, err := s.repo.GetClient(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.ClientBalance{}, err
	}
	return *client, nil
}

func (s *Service) ListClientsWithBalance(ctx context.Context) ([]domain.ClientBalance, error) {
	return s.repo.ListClientsWithBalance(ctx)
}

func (s *Service) ListClientMovements(ctx context.Context, clientID string) ([]domain.AccountMovement, error) {
	return s.repo.ListMovements(ctx, strings.TrimSpace(clientID))
}

// AddMovement posts a DEBT or PAYMENT against a client account. Manual debts
// are not checked against the credit limit; on-account checkout is.
func (s *Service) AddMovement(ctx context.Context, clientID string, req domain.MovementCreateRequest) (domain.AccountMovement, error) {
	req.Type = domain.MovementType(strings.ToUpper(strings.TrimSpace(string(req.Type))))
	req.Description = strings.TrimSpace(req.Description)
	req.SaleID = strings.TrimSpace(req.SaleID)
	if err := s.check(req); err != nil {
		return domain.AccountMovement{}, err
	}
	if !req.Type.Valid() {
		return domain.AccountMovement{}, invalid("type", "must be DEBT or PAYMENT")
	}

	movement := domain.AccountMovement{
		ID:          xid.New("mov"),
		ClientID:    strings.TrimSpace(clientID),
		CreatedAt:   s.timestamp(),
		Type:        req.Type,
		AmountCents: req.AmountCents,
		Description: req.Description,
		SaleID:      req.SaleID,
	}

	var created *domain.AccountMovement
	err := s.mutate(func() error {
		var err error
		created, err = s.repo.CreateMovement(ctx, movement)
		return err
	})
	if err != nil {
		return domain.AccountMovement{}, err
	}

	s.metrics.RecordMovement(string(created.Type))
	s.logAudit(ctx, "movement.create", "client", created.ClientID, fmt.Sprintf("type=%s,amount=%d", created.Type, created.AmountCents))
	return *created, nil
}

// CheckCreditLimit reports whether adding amountCents to the client balance
// stays within the credit limit. It writes nothing.
func (s *Service) CheckCreditLimit(ctx context.Context, clientID string, amountCents int64) error {
	if amountCents < 0 {
		return invalid("amount_cents", "must be at least 0")
	}
	client, err := s.repo.GetClient(ctx, strings.TrimSpace(clientID))
	if err != nil {
		return err
	}
	return creditCheck(client, amountCents)
}
