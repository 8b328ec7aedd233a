package browser

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseLocator(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantCSS bool
		want    string
	}{
		{"XPath", "/html/frameset/frame[2]", false, "/html/frameset/frame[2]"},
		{"带空白的XPath", "  //a[@target='_blank'] ", false, "//a[@target='_blank']"},
		{"CSS", "css=input[name=numac]", true, "input[name=numac]"},
		{"CSS前缀后空白", "css= h3 > center", true, "h3 > center"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := ParseLocator(tt.input)
			if loc.CSS != tt.wantCSS || loc.Expr != tt.want {
				t.Errorf("ParseLocator(%q) = %+v", tt.input, loc)
			}
			if ParseLocator(loc.String()) != loc {
				t.Errorf("String() 无法还原: %q", loc.String())
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"会话丢失", fmt.Errorf("点击: %w", ErrSessionLost), true},
		{"启动失败", ErrSessionInit, true},
		{"句柄失效", ErrStaleHandle, false},
		{"定位失败", fmt.Errorf("%w: x", ErrLocator), false},
		{"其他错误", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
