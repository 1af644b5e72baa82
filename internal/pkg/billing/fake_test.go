package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	mu            sync.Mutex
	subscriptions map[string]*ProcessorSubscription
	retrieveErr   error
	customerErr   error
	sessionErr    error
	customers     []string
	sessions      []CheckoutSessionParams
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{subscriptions: map[string]*ProcessorSubscription{}}
}

func (f *fakeProcessor) RetrieveSubscription(_ context.Context, id string) (*ProcessorSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	sub, ok := f.subscriptions[id]
	if !ok {
		return nil, upstream("retrieve subscription", fmt.Errorf("no such subscription: %s", id))
	}
	return sub, nil
}

func (f *fakeProcessor) CreateCustomer(_ context.Context, accountID, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.customerErr != nil {
		return "", f.customerErr
	}
	id := fmt.Sprintf("cus_%d", len(f.customers)+1)
	f.customers = append(f.customers, accountID)
	return id, nil
}

func (f *fakeProcessor) CreateCheckoutSession(_ context.Context, in CheckoutSessionParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessionErr != nil {
		return "", f.sessionErr
	}
	f.sessions = append(f.sessions, in)
	return fmt.Sprintf("https://checkout.stripe.com/c/pay/cs_test_%d", len(f.sessions)), nil
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func newEvent(t *testing.T, id, typ string, created time.Time, object interface{}) *Event {
	t.Helper()
	obj := mustJSON(t, object)
	payload := mustJSON(t, map[string]interface{}{
		"id":      id,
		"type":    typ,
		"created": created.Unix(),
		"data":    map[string]json.RawMessage{"object": obj},
	})
	return &Event{ID: id, Type: typ, Created: created, Object: obj, Payload: payload}
}
