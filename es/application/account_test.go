package application

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/getpup/pupstore/es"
)

// account is a minimal event-sourced aggregate shared by the tests in
// this package.
type account struct {
	id      uuid.UUID
	version int64
	balance int64
	pending []es.DomainEvent
}

func (a *account) ID() uuid.UUID  { return a.id }
func (a *account) Version() int64 { return a.version }

func (a *account) CollectPending() []es.DomainEvent {
	pending := a.pending
	a.pending = nil
	return pending
}

func (a *account) Snapshot() es.DomainEvent {
	return accountSnapshot{AccountID: a.id, AccountVersion: a.version, Balance: a.balance}
}

func (a *account) deposit(amount int64) {
	a.trigger(cashDeposited{AccountID: a.id, AccountVersion: a.version + 1, Amount: amount})
}

func (a *account) trigger(event es.DomainEvent) {
	if _, err := event.Mutate(a); err != nil {
		panic(err)
	}
	a.pending = append(a.pending, event)
}

func openAccount() *account {
	event := accountOpened{AccountID: uuid.New(), AccountVersion: 1}
	aggregate, err := event.Mutate(nil)
	if err != nil {
		panic(err)
	}
	a := aggregate.(*account)
	a.pending = append(a.pending, event)
	return a
}

type accountOpened struct {
	AccountID      uuid.UUID `json:"account_id"`
	AccountVersion int64     `json:"account_version"`
}

func (e accountOpened) OriginatorID() uuid.UUID  { return e.AccountID }
func (e accountOpened) OriginatorVersion() int64 { return e.AccountVersion }
func (e accountOpened) Mutate(aggregate es.Aggregate) (es.Aggregate, error) {
	if aggregate != nil {
		return nil, errors.New("account already opened")
	}
	return &account{id: e.AccountID, version: e.AccountVersion}, nil
}

type cashDeposited struct {
	AccountID      uuid.UUID `json:"account_id"`
	AccountVersion int64     `json:"account_version"`
	Amount         int64     `json:"amount"`
}

func (e cashDeposited) OriginatorID() uuid.UUID  { return e.AccountID }
func (e cashDeposited) OriginatorVersion() int64 { return e.AccountVersion }
func (e cashDeposited) Mutate(aggregate es.Aggregate) (es.Aggregate, error) {
	a, ok := aggregate.(*account)
	if !ok {
		return nil, fmt.Errorf("expected *account, got %T", aggregate)
	}
	a.balance += e.Amount
	a.version = e.AccountVersion
	return a, nil
}

type accountSnapshot struct {
	AccountID      uuid.UUID `json:"account_id"`
	AccountVersion int64     `json:"account_version"`
	Balance        int64     `json:"balance"`
}

func (e accountSnapshot) OriginatorID() uuid.UUID  { return e.AccountID }
func (e accountSnapshot) OriginatorVersion() int64 { return e.AccountVersion }
func (e accountSnapshot) Mutate(aggregate es.Aggregate) (es.Aggregate, error) {
	if aggregate != nil {
		return nil, errors.New("snapshot must rebuild from nil")
	}
	return &account{id: e.AccountID, version: e.AccountVersion, balance: e.Balance}, nil
}

func newTestMapper() *es.Mapper {
	transcoder := es.NewTranscoder()
	es.RegisterJSON[accountOpened](transcoder, "AccountOpened")
	es.RegisterJSON[cashDeposited](transcoder, "CashDeposited")
	es.RegisterJSON[accountSnapshot](transcoder, "AccountSnapshot")
	return es.NewMapper(transcoder)
}
