// Package eventtype 는 indigauge API 에 상수로 넘긴 event type 을 빌드 시점에 검사하는 analyzer 이다.
//
// 런타임 검사(event.Check)와 같은 규칙을 쓴다. 상수가 아닌 인자는 건너뛴다.
package eventtype

import (
	"go/ast"
	"go/constant"
	"go/types"

	"github.com/indigauge/indigauge-go/internal/event"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

// APIPath 는 검사 대상 패키지.
const APIPath = "github.com/indigauge/indigauge-go/pkg/indigauge"

var Analyzer = &analysis.Analyzer{
	Name:     "igeventtype",
	Doc:      "reports constant indigauge event types that are not of the form \"namespace.event\"",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

// eventTypeArg 는 함수(또는 Client 메서드) 이름 → event type 인자 위치.
var eventTypeArg = map[string]int{
	"Emit":          1,
	"Trace":         0,
	"Debug":         0,
	"Info":          0,
	"Warn":          0,
	"Error":         0,
	"MustEventType": 0,
}

func run(pass *analysis.Pass) (any, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	insp.Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call := n.(*ast.CallExpr)

		fn, ok := typeutil.Callee(pass.TypesInfo, call).(*types.Func)
		if !ok || fn.Pkg() == nil || fn.Pkg().Path() != APIPath {
			return
		}
		idx, ok := eventTypeArg[fn.Name()]
		if !ok || idx >= len(call.Args) {
			return
		}

		arg := call.Args[idx]
		tv, ok := pass.TypesInfo.Types[arg]
		if !ok || tv.Value == nil || tv.Value.Kind() != constant.String {
			return
		}
		if err := event.ValidateEventType(constant.StringVal(tv.Value)); err != nil {
			pass.Reportf(arg.Pos(), "%v", err)
		}
	})
	return nil, nil
}
