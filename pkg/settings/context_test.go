package settings

import (
	"context"
	"testing"
)

func TestIntoContext(t *testing.T) {
	tests := []struct {
		name     string
		settings *Run
	}{
		{
			name:     "empty_settings",
			settings: &Run{},
		},
		{
			name: "settings_with_values",
			settings: &Run{
				NoColor: true,
				LogFile: "/tmp/facetview.log",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			newCtx := IntoContext(ctx, tt.settings)

			if ctx == newCtx {
				t.Error("IntoContext() should return a new context")
			}

			retrieved, ok := newCtx.Value(settingsContextKey).(*Run)
			if !ok {
				t.Fatal("IntoContext() stored value is not *Run")
			}
			if retrieved != tt.settings {
				t.Errorf("IntoContext() stored different settings pointer")
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("FromContext() on empty context should report false")
	}

	want := &Run{MinLogLevel: -1}
	got, ok := FromContext(IntoContext(context.Background(), want))
	if !ok || got != want {
		t.Fatalf("FromContext() = %v, %v; want %v, true", got, ok, want)
	}
}
