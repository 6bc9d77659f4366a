package ledger

// aggregates はセッションの集計値
// 各指標は独立してnilを取り、サンプルが到着するまで未定義のまま保持される
type aggregates struct {
	luxMin   *float64
	luxMax   *float64
	luxAvg   *float64
	luxCount int
	isoMin   *int
	isoMax   *int
	wbMin    *int
	wbMax    *int
}

// addSample は1回の撮影設定から集計値を逐次更新する
//
// 平均は全履歴を再走査しない移動平均（Welford法）で更新するため、
// セッション内の撮影枚数に関わらず書き込みコストは一定となる。
// 設定に含まれない指標は一切更新されない。
func (a *aggregates) addSample(s CaptureSettings) {
	if s.Lux != nil {
		x := *s.Lux
		a.luxCount++
		if a.luxAvg == nil {
			v := x
			a.luxAvg = &v
		} else {
			v := *a.luxAvg + (x-*a.luxAvg)/float64(a.luxCount)
			a.luxAvg = &v
		}
		a.luxMin = minFloat(a.luxMin, x)
		a.luxMax = maxFloat(a.luxMax, x)
	}

	if s.ISO != nil {
		a.isoMin = minInt(a.isoMin, *s.ISO)
		a.isoMax = maxInt(a.isoMax, *s.ISO)
	}

	if s.WBTemp != nil {
		a.wbMin = minInt(a.wbMin, *s.WBTemp)
		a.wbMax = maxInt(a.wbMax, *s.WBTemp)
	}
}

func minFloat(cur *float64, x float64) *float64 {
	if cur == nil || x < *cur {
		return &x
	}
	return cur
}

func maxFloat(cur *float64, x float64) *float64 {
	if cur == nil || x > *cur {
		return &x
	}
	return cur
}

func minInt(cur *int, x int) *int {
	if cur == nil || x < *cur {
		return &x
	}
	return cur
}

func maxInt(cur *int, x int) *int {
	if cur == nil || x > *cur {
		return &x
	}
	return cur
}
