package hardware

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucketCores(t *testing.T) {
	cases := map[uint32]string{0: "1-2", 2: "1-2", 3: "3-4", 4: "3-4", 5: "6-8", 8: "6-8", 9: ">8", 64: ">8"}
	for n, want := range cases {
		assert.Equal(t, want, BucketCores(n), "cores=%d", n)
	}
}

func TestBucketRAMGB(t *testing.T) {
	cases := map[uint32]string{0: "<=4", 4: "<=4", 5: "6-8", 8: "6-8", 12: "12-16", 16: "12-16", 17: ">16", 128: ">16"}
	for gb, want := range cases {
		assert.Equal(t, want, BucketRAMGB(gb), "gb=%d", gb)
	}
}

func TestCoarsenCPUName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"11th Gen Intel(R) Core(TM) i7-11850H @ 2.50GHz", "Intel i7 11th Gen"},
		{"Intel(R) Core(TM) i5-8250U CPU @ 1.60GHz", "Intel i5 8th Gen"},
		{"Intel(R) Core(TM) i9 CPU", "Intel i9"},
		{"Intel(R) Core(TM) m3-7Y30", "Intel Core (Other)"},
		{"Intel(R) Xeon(R) CPU E5-2678 v3", "Intel Xeon"},
		{"Intel(R) Celeron(R) N4020", "Intel Celeron"},
		{"Genuine Intel(R) 0000", "Intel (Other)"},
		{"AMD Ryzen 7 5800X3D 8-Core Processor", "AMD Ryzen 5000 Series"},
		{"AMD Ryzen Threadripper 3990X", "AMD Ryzen Threadripper"},
		{"AMD Ryzen", "AMD Ryzen"},
		{"AMD EPYC 7763", "AMD EPYC"},
		{"AMD Athlon Silver", "AMD Athlon"},
		{"AMD FX-8350", "AMD (Other)"},
		{"Apple M2 Pro", "Apple M2"},
		{"Apple M1", "Apple M1"},
		{"ARM Cortex-A72", "ARM (Generic)"},
		{"Some Unknown Chip", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CoarsenCPUName(tt.in), tt.in)
	}
}

func TestProbeFillsOS(t *testing.T) {
	d := Probe()
	assert.Equal(t, runtime.GOOS, d.OS)
	assert.NotEmpty(t, d.Cores)
}
