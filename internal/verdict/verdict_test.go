package verdict

import "testing"

func TestCodePrecedence(t *testing.T) {
	tests := []struct {
		name  string
		build func(v *Verdict)
		want  Code
	}{
		{"empty", func(v *Verdict) {}, OK},
		{"success text only", func(v *Verdict) { v.AppendWarning("", " fine.") }, OK},
		{"warning", func(v *Verdict) { v.AppendWarning(" w.", "") }, Warning},
		{"critical beats warning", func(v *Verdict) {
			v.AppendWarning(" w.", "")
			v.AppendCritical(" c.", "")
		}, Critical},
		{"unknown beats critical", func(v *Verdict) {
			v.AppendCritical(" c.", "")
			v.AppendUnknown(" u.", "")
			v.AppendWarning(" w.", "")
		}, Unknown},
		{"unknown alone", func(v *Verdict) { v.AppendUnknown(" u.", "") }, Unknown},
		{"metric critical", func(v *Verdict) { v.AppendMetrics("'m'=1", "", " c.") }, Critical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Verdict
			tt.build(&v)
			if got := v.Code(); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	var v Verdict
	v.AppendWarning(" warn.", " good.")
	v.AppendCritical(" crit.", "")
	v.AppendMetrics("'a'=1 ", "", "")
	v.AppendMetrics("'b'=2s;1:4", " metric warn.", "")

	want := "CRITICAL: good. crit. warn. metric warn.|'a'=1 'b'=2s;1:4"
	if got := v.Message(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMessageWithoutPerfdata(t *testing.T) {
	var v Verdict
	v.AppendWarning("", " Value for key x (1) does match 1.")
	want := "OK: Value for key x (1) does match 1."
	if got := v.Message(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if v.Perfdata() != "" {
		t.Fatal("expected no perfdata")
	}
}

func TestCodeString(t *testing.T) {
	for code, label := range map[Code]string{OK: "OK", Warning: "WARNING", Critical: "CRITICAL", Unknown: "UNKNOWN", Code(9): "UNKNOWN"} {
		if code.String() != label {
			t.Fatalf("code %d: expected %s, got %s", int(code), label, code.String())
		}
	}
}
