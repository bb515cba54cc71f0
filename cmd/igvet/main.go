// igvet 은 indigauge event type 상수를 검사하는 vet 도구이다.
//
//	go vet -vettool=$(which igvet) ./...
package main

import (
	"github.com/indigauge/indigauge-go/internal/lint/eventtype"

	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() {
	singlechecker.Main(eventtype.Analyzer)
}
