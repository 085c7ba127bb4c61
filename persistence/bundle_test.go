package persistence

import "testing"

func TestBundleFieldRoundTrip(t *testing.T) {
	b := NewBundle("process.Process")
	b.SetField("pid", "abc-123")
	b.SetField("step", 4)

	if got := b.ClassName(); got != "process.Process" {
		t.Fatalf("ClassName() = %q, want %q", got, "process.Process")
	}
	if got := b.Field("pid").String(); got != "abc-123" {
		t.Fatalf("Field(pid) = %q, want %q", got, "abc-123")
	}
	if got := b.Field("step").Int(); got != 4 {
		t.Fatalf("Field(step) = %d, want 4", got)
	}
	if got := b.FieldTag("pid"); got != FieldTagValue {
		t.Fatalf("FieldTag(pid) = %q, want %q", got, FieldTagValue)
	}
}

func TestBundleMethodField(t *testing.T) {
	b := NewBundle("process.Process")
	b.SetMethodField("resume_fn", "stepTwo")

	if got := b.FieldTag("resume_fn"); got != FieldTagMethod {
		t.Fatalf("FieldTag(resume_fn) = %q, want %q", got, FieldTagMethod)
	}
	if got := b.Field("resume_fn").String(); got != "stepTwo" {
		t.Fatalf("Field(resume_fn) = %q, want %q", got, "stepTwo")
	}
}

func TestBundleSavableField(t *testing.T) {
	outer := NewBundle("process.Process")
	inner := NewBundle("process.stateCreated")
	inner.SetField("run_fn", "run")

	outer.SetSavableField("state", inner)

	if got := outer.FieldTag("state"); got != FieldTagSavable {
		t.Fatalf("FieldTag(state) = %q, want %q", got, FieldTagSavable)
	}

	nested, ok := outer.NestedBundle("state")
	if !ok {
		t.Fatal("expected nested bundle to be present")
	}
	if got := nested.ClassName(); got != "process.stateCreated" {
		t.Fatalf("nested ClassName() = %q, want %q", got, "process.stateCreated")
	}
	if got := nested.Field("run_fn").String(); got != "run" {
		t.Fatalf("nested Field(run_fn) = %q, want %q", got, "run")
	}
}

func TestBundleObjectLoaderOverride(t *testing.T) {
	b := NewBundle("process.Process")
	b.SetObjectLoader("custom.loader.id")

	if got := b.ObjectLoader(); got != "custom.loader.id" {
		t.Fatalf("ObjectLoader() = %q, want %q", got, "custom.loader.id")
	}
}

func TestParseBundleRoundTrip(t *testing.T) {
	b := NewBundle("process.Process")
	b.SetField("pid", "abc-123")

	parsed, err := ParseBundle(b.Bytes())
	if err != nil {
		t.Fatalf("ParseBundle failed: %v", err)
	}
	if got := parsed.ClassName(); got != "process.Process" {
		t.Fatalf("ClassName() = %q, want %q", got, "process.Process")
	}
	if got := parsed.Field("pid").String(); got != "abc-123" {
		t.Fatalf("Field(pid) = %q, want %q", got, "abc-123")
	}
}

func TestParseBundleRejectsInvalidJSON(t *testing.T) {
	if _, err := ParseBundle([]byte("not json")); err == nil {
		t.Fatal("expected error parsing invalid bundle JSON")
	}
}

func TestFieldTagDefaultsToValue(t *testing.T) {
	b := NewBundle("process.Process")
	if got := b.FieldTag("never_set"); got != FieldTagValue {
		t.Fatalf("FieldTag(never_set) = %q, want %q", got, FieldTagValue)
	}
}
