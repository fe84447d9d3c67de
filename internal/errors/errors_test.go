package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "type mismatch",
			code:    "S100",
			wantMsg: "Value type does not match the cell",
			wantCat: CategorySync,
		},
		{
			name:    "storage error",
			code:    "S104",
			wantMsg: "Storage area operation failed",
			wantCat: CategoryStorage,
		},
		{
			name:    "config error",
			code:    "S203",
			wantMsg: "Unknown storage driver",
			wantCat: CategoryConfig,
		},
		{
			name:    "unknown error code",
			code:    "S999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryCLI, "file %q not found", "storesync.json")
	if err.Message != `file "storesync.json" not found` {
		t.Errorf("Message = %q, want %q", err.Message, `file "storesync.json" not found`)
	}
	if err.Category != CategoryCLI {
		t.Errorf("Category = %q, want %q", err.Category, CategoryCLI)
	}
}

func TestSyncError_Error(t *testing.T) {
	err := New("S102")
	if got, want := err.Error(), "S102: Stored value is missing"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	err = New("S101").WithKey("count").Wrap(fmt.Errorf("bad text"))
	if got, want := err.Error(), `S101: Stored value could not be parsed (key "count"): bad text`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	// Without code
	err2 := &SyncError{Message: "test error"}
	if err2.Error() != "test error" {
		t.Errorf("Error() = %q, want %q", err2.Error(), "test error")
	}
}

func TestSyncError_Builders(t *testing.T) {
	err := New("S100").
		WithKey("theme").
		WithScope("session").
		WithDetail("Custom detail").
		WithSuggestion("Custom hint")

	if err.Key != "theme" || err.Scope != "session" {
		t.Errorf("Key/Scope = %q/%q", err.Key, err.Scope)
	}
	if err.Detail != "Custom detail" {
		t.Errorf("Detail = %q, want %q", err.Detail, "Custom detail")
	}
	if err.Suggestion != "Custom hint" {
		t.Errorf("Suggestion = %q, want %q", err.Suggestion, "Custom hint")
	}
}

func TestSyncError_Wrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	outer := New("S101").Wrap(fmt.Errorf("decoding: %w", sentinel))

	if !errors.Is(outer, sentinel) {
		t.Error("errors.Is should find the wrapped sentinel")
	}
	if !errors.Is(outer, New("S101")) {
		t.Error("errors.Is should match a SyncError with the same code")
	}
	if errors.Is(outer, New("S100")) {
		t.Error("errors.Is should not match a different code")
	}
}

func TestFromError(t *testing.T) {
	// nil error
	if FromError(nil, "S104") != nil {
		t.Error("FromError(nil, ...) should return nil")
	}

	// Already SyncError, possibly wrapped
	se := New("S100")
	if FromError(fmt.Errorf("context: %w", se), "S104") != se {
		t.Error("FromError should return the contained SyncError")
	}

	// Standard error
	stdErr := &testError{msg: "test error"}
	result := FromError(stdErr, "S104")
	if result.Wrapped != stdErr {
		t.Error("Standard error should be wrapped")
	}
	if result.Code != "S104" {
		t.Errorf("Code = %q, want S104", result.Code)
	}
}

type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("x: %w", New("S103"))); got != "S103" {
		t.Errorf("CodeOf = %q, want S103", got)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf plain error = %q, want empty", got)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("S100").
		WithKey("count").
		WithScope("persistent").
		Wrap(errors.New("number expected, got string"))

	formatted := err.Format()

	for _, want := range []string{
		"ERROR S100: Value type does not match the cell",
		`key "count" (persistent)`,
		"Cause: number expected, got string",
		"Hint:",
		"Learn more:",
	} {
		if !strings.Contains(formatted, want) {
			t.Errorf("Format should contain %q, got:\n%s", want, formatted)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	err := New("S102").WithKey("count").WithScope("session")
	compact := err.FormatCompact()

	want := "S102: Stored value is missing [count@session]"
	if compact != want {
		t.Errorf("FormatCompact() = %q, want %q", compact, want)
	}
}

func TestFormatJSON(t *testing.T) {
	err := New("S101").WithKey("count").Wrap(errors.New("bad"))
	json := err.FormatJSON()

	for _, want := range []string{
		`"code":"S101"`,
		`"category":"sync"`,
		`"message":"Stored value could not be parsed"`,
		`"key":"count"`,
		`"cause":"bad"`,
	} {
		if !strings.Contains(json, want) {
			t.Errorf("JSON should contain %s, got %s", want, json)
		}
	}
}

func TestGetAllCodes(t *testing.T) {
	codes := GetAllCodes()
	if len(codes) == 0 {
		t.Error("GetAllCodes() should return codes")
	}

	found := false
	for _, code := range codes {
		if code == "S100" {
			found = true
			break
		}
	}
	if !found {
		t.Error("S100 should be in the codes list")
	}
}

func TestGetTemplate(t *testing.T) {
	template, ok := GetTemplate("S100")
	if !ok {
		t.Error("S100 should exist")
	}
	if template.Message != "Value type does not match the cell" {
		t.Error("Template message mismatch")
	}

	_, ok = GetTemplate("S999")
	if ok {
		t.Error("S999 should not exist")
	}
}

func TestRegister(t *testing.T) {
	Register("S999", ErrorTemplate{
		Category: CategorySync,
		Message:  "Custom test error",
		Detail:   "This is a test error",
	})
	defer delete(registry, "S999")

	err := New("S999")
	if err.Message != "Custom test error" {
		t.Errorf("Message = %q, want %q", err.Message, "Custom test error")
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("short text", 100)
	if len(got) != 1 || got[0] != "short text" {
		t.Errorf("wrapText short text: got %v", got)
	}

	got = wrapText("this is a longer text that should be wrapped", 20)
	if len(got) != 3 {
		t.Errorf("wrapText long text: expected 3 lines, got %d: %v", len(got), got)
	}

	got = wrapText("", 10)
	if len(got) != 0 {
		t.Errorf("wrapText empty: expected empty, got %v", got)
	}
}

func TestColorFunctions(t *testing.T) {
	EnableColors()
	if !strings.Contains(red("test"), "\033[31m") {
		t.Error("red should contain ANSI code when colors enabled")
	}

	DisableColors()
	if strings.Contains(red("test"), "\033[") {
		t.Error("red should not contain ANSI code when colors disabled")
	}
	EnableColors()
}

func TestFormatJSON_ControlCharacters(t *testing.T) {
	err := New("S221").WithKey("a\x01b\n").Wrap(errors.New("tab\there"))

	var got struct {
		Code  string `json:"code"`
		Key   string `json:"key"`
		Cause string `json:"cause"`
	}
	if uerr := json.Unmarshal([]byte(err.FormatJSON()), &got); uerr != nil {
		t.Fatalf("FormatJSON() = %s is not valid JSON: %v", err.FormatJSON(), uerr)
	}
	if got.Code != "S221" || got.Key != "a\x01b\n" || got.Cause != "tab\there" {
		t.Errorf("round trip: got %+v", got)
	}
}
