package orchestratornode

import (
	"testing"

	toolx "github.com/tanpawarit/atlas-banking-gateway/agent/tool"
)

func TestExtractChainValueSkipsRecordsWithoutIdentifier(t *testing.T) {
	t.Parallel()

	c := &toolx.ToolContract{Name: "get_customer_accounts"}
	body := []any{
		map[string]any{"displayName": "Joint savings"},
		map[string]any{"accountId": "ACC-2"},
	}

	key, value, ok := extractChainValue(c, body)
	if !ok {
		t.Fatal("expected identifier from second record")
	}
	if key != "accountId" || value != "ACC-2" {
		t.Fatalf("got %s=%v, want accountId=ACC-2", key, value)
	}
}

func TestExtractChainValueOutputKeyWinsWithinRecord(t *testing.T) {
	t.Parallel()

	c := &toolx.ToolContract{Name: "get_customer_accounts", OutputKey: "arrangementId"}
	body := []any{
		map[string]any{"accountId": "ACC-1", "arrangementId": "ARR-1"},
	}

	key, value, ok := extractChainValue(c, body)
	if !ok {
		t.Fatal("expected identifier")
	}
	if key != "arrangementId" || value != "ARR-1" {
		t.Fatalf("got %s=%v, want arrangementId=ARR-1", key, value)
	}
}

func TestExtractChainValueEarlierRecordOutranksOutputKey(t *testing.T) {
	t.Parallel()

	c := &toolx.ToolContract{Name: "get_customer_accounts", OutputKey: "arrangementId"}
	body := []any{
		map[string]any{"accountId": "ACC-1"},
		map[string]any{"arrangementId": "ARR-2"},
	}

	key, value, ok := extractChainValue(c, body)
	if !ok {
		t.Fatal("expected identifier")
	}
	if key != "accountId" || value != "ACC-1" {
		t.Fatalf("got %s=%v, want accountId=ACC-1 from the first record", key, value)
	}
}

func TestExtractChainValueNonMapAndNilEntries(t *testing.T) {
	t.Parallel()

	c := &toolx.ToolContract{Name: "get_customer_accounts"}
	body := []any{
		"not-a-record",
		map[string]any{"accountId": nil},
		map[string]any{"account": "ACC-3"},
	}

	key, value, ok := extractChainValue(c, body)
	if !ok {
		t.Fatal("expected identifier")
	}
	if key != "account" || value != "ACC-3" {
		t.Fatalf("got %s=%v, want account=ACC-3", key, value)
	}
}

func TestExtractChainValueNoneFound(t *testing.T) {
	t.Parallel()

	c := &toolx.ToolContract{Name: "get_customer_accounts"}
	body := []any{map[string]any{"displayName": "Everyday"}, 42}

	if _, _, ok := extractChainValue(c, body); ok {
		t.Fatal("expected no identifier")
	}
}
