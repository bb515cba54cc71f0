// Package hardware 는 세션 시작 시 보내는 거친(coarse) 하드웨어 정보를 만든다.
// 지문(fingerprint)이 되지 않도록 모든 값은 구간/계열 단위로 뭉갠다.
package hardware

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Descriptor 는 sessions/start 에 실리는 하드웨어 요약.
type Descriptor struct {
	OS        string
	CPUFamily string
	Cores     string
	Memory    string
}

// Probe 는 gopsutil 로 현재 머신 정보를 읽는다.
// 읽지 못한 항목은 비워 둔다 (전송 시 생략됨).
func Probe() Descriptor {
	d := Descriptor{OS: runtime.GOOS}

	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		d.CPUFamily = CoarsenCPUName(infos[0].ModelName)
	}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		d.Cores = BucketCores(uint32(n))
	} else {
		d.Cores = BucketCores(uint32(runtime.NumCPU()))
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm.Total > 0 {
		d.Memory = BucketRAMGB(uint32(vm.Total >> 30))
	}
	return d
}

// BucketCores 는 논리 코어 수를 구간 문자열로 바꾼다.
func BucketCores(n uint32) string {
	switch {
	case n <= 2:
		return "1-2"
	case n <= 4:
		return "3-4"
	case n <= 8:
		return "6-8"
	}
	return ">8"
}

// BucketRAMGB 는 GB 단위 메모리를 구간 문자열로 바꾼다.
func BucketRAMGB(gb uint32) string {
	switch {
	case gb <= 4:
		return "<=4"
	case gb <= 8:
		return "6-8"
	case gb <= 16:
		return "12-16"
	}
	return ">16"
}

// CoarsenCPUName
// ------------------------------------------------------------
// CPU 모델 문자열을 계열 수준으로 뭉갠다. 분류할 수 없으면 "".
//
//	"11th Gen Intel(R) Core(TM) i7-11850H @ 2.50GHz" → "Intel i7 11th Gen"
//	"AMD Ryzen 7 5800X3D 8-Core Processor"           → "AMD Ryzen 5000 Series"
//	"Apple M2 Pro"                                   → "Apple M2"
//	"Intel(R) Xeon(R) CPU E5-2678 v3"                → "Intel Xeon"
func CoarsenCPUName(raw string) string {
	name := strings.ToLower(raw)

	for _, m := range []string{"m1", "m2", "m3"} {
		if strings.Contains(name, "apple "+m) {
			return "Apple " + strings.ToUpper(m)
		}
	}

	switch {
	case strings.Contains(name, "intel"):
		return coarsenIntel(name)
	case strings.Contains(name, "amd"):
		return coarsenAMD(name)
	case strings.Contains(name, "arm"), strings.Contains(name, "cortex"):
		return "ARM (Generic)"
	}
	return ""
}

func coarsenIntel(name string) string {
	for _, fam := range []struct{ key, label string }{
		{"celeron", "Intel Celeron"},
		{"pentium", "Intel Pentium"},
		{"xeon", "Intel Xeon"},
		{"atom", "Intel Atom"},
	} {
		if strings.Contains(name, fam.key) {
			return fam.label
		}
	}

	if !strings.Contains(name, "core") {
		return "Intel (Other)"
	}
	for _, tier := range []string{"i3", "i5", "i7", "i9"} {
		if !strings.Contains(name, tier) {
			continue
		}
		if gen, ok := intelGeneration(name, tier); ok {
			return fmt.Sprintf("Intel %s %dth Gen", tier, gen)
		}
		return "Intel " + tier
	}
	return "Intel Core (Other)"
}

// intelGeneration 은 "11th gen" 또는 모델 번호 첫 자리("i7-8700" → 8)에서 세대를 읽는다.
func intelGeneration(name, tier string) (int, bool) {
	if pos := strings.Index(name, "th gen"); pos > 0 {
		start := pos
		for start > 0 && name[start-1] >= '0' && name[start-1] <= '9' {
			start--
		}
		if start < pos {
			gen := 0
			for _, c := range name[start:pos] {
				gen = gen*10 + int(c-'0')
			}
			return gen, true
		}
	}
	if pos := strings.Index(name, tier+"-"); pos >= 0 && pos+3 < len(name) {
		if c := name[pos+3]; c >= '0' && c <= '9' {
			return int(c - '0'), true
		}
	}
	return 0, false
}

func coarsenAMD(name string) string {
	switch {
	case strings.Contains(name, "ryzen"):
		if strings.Contains(name, "threadripper") {
			return "AMD Ryzen Threadripper"
		}
		fields := strings.Fields(name)
		for i, f := range fields {
			if f == "ryzen" && i+2 < len(fields) {
				if c := fields[i+2][0]; c >= '0' && c <= '9' {
					return fmt.Sprintf("AMD Ryzen %c000 Series", c)
				}
			}
		}
		return "AMD Ryzen"
	case strings.Contains(name, "epyc"):
		return "AMD EPYC"
	case strings.Contains(name, "athlon"):
		return "AMD Athlon"
	}
	return "AMD (Other)"
}
