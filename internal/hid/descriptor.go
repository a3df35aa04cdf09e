package hid

import "encoding/binary"

// HIDレポートディスクリプタのアイテムタグ（プレフィックスの上位6ビット）
const (
	tagUsagePage     = 0x04
	tagUsage         = 0x08
	tagLogicalMin    = 0x14
	tagUsageMin      = 0x18
	tagLogicalMax    = 0x24
	tagUsageMax      = 0x28
	tagReportSize    = 0x74
	tagInput         = 0x80
	tagReportID      = 0x84
	tagReportCount   = 0x94
	tagCollection    = 0xA0
	tagFeature       = 0xB0
	tagEndCollection = 0xC0

	longItemPrefix = 0xFE
)

// BurstReportLength はレポートディスクリプタを走査し、指定レポートIDの
// Featureアイテムに対応するReport Count（＝バーストレポートのペイロード長）
// を返す。見つからなければfalseを返す。
func BurstReportLength(desc []byte, reportID byte) (int, bool) {
	i := 0
	var currentID byte
	var haveID bool
	var count int
	var haveCount bool

	for i < len(desc) {
		prefix := desc[i]

		// 長形式アイテム: プレフィックス、1バイトのサイズ、1バイトのタグ
		if prefix == longItemPrefix {
			if i+2 >= len(desc) {
				break
			}
			dataSize := int(desc[i+1])
			i += 3 + dataSize
			continue
		}

		size := int(prefix & 0x03)
		if size == 3 {
			size = 4
		}

		if i+1+size > len(desc) {
			break
		}

		tag := prefix & 0xFC
		data := desc[i+1 : i+1+size]

		switch tag {
		case tagReportID:
			if len(data) > 0 {
				currentID = data[0]
				haveID = true
				haveCount = false
			}
		case tagReportCount:
			count = int(itemValue(data))
			haveCount = true
		case tagFeature:
			if haveID && currentID == reportID && haveCount {
				return count, true
			}
		}

		i += 1 + size
	}

	return 0, false
}

// itemValue はアイテムのデータ部をリトルエンディアンの符号なし値として読む
func itemValue(data []byte) uint32 {
	switch len(data) {
	case 1:
		return uint32(data[0])
	case 2:
		return uint32(binary.LittleEndian.Uint16(data))
	case 4:
		return binary.LittleEndian.Uint32(data)
	}
	return 0
}

// itemValueSigned は論理最小/最大値を符号付きとして読む
func itemValueSigned(data []byte) int {
	switch len(data) {
	case 1:
		return int(int8(data[0]))
	case 2:
		return int(int16(binary.LittleEndian.Uint16(data)))
	case 4:
		return int(int32(binary.LittleEndian.Uint32(data)))
	}
	return 0
}

// Field はレポート内の1アイテム（Input/Feature）のフィールド配置
type Field struct {
	ReportID   byte
	Collection int      // リンクコレクション番号（出現順、トップレベル=0）
	UsagePage  uint16
	Usages     []uint16 // Variableの場合は各スロットに対応するUsage
	UsageMin   uint16   // Arrayの場合の値→Usage変換の基点
	BitOffset  int      // レポートID直後からのビット位置
	BitSize    int
	Count      int
	LogicalMin int
	LogicalMax int
	Constant   bool
	Variable   bool
	Input      bool // falseならFeatureアイテム
}

// ReportCaps は解析済みディスクリプタから得たフィールド表。
// 代替タッチデコーダがレポートから値を取り出すために用いる。
// デバイスごとに1つ生成し、デコード呼び出しへ明示的に渡す。
type ReportCaps struct {
	Fields      []Field
	MaxContacts int // Contact Count Maximum（Usage 0x55）のLogicalMax
}

// ParseReportDescriptor はディスクリプタを走査してフィールド表を構築する
func ParseReportDescriptor(desc []byte) *ReportCaps {
	caps := &ReportCaps{MaxContacts: 5}

	var (
		usagePage  uint16
		reportID   byte
		reportSize int
		reportCnt  int
		logicalMin int
		logicalMax int

		usages     []uint16
		usageMin   uint16
		usageMax   uint16
		haveRange  bool

		collection     = 0
		nextCollection = 0
		stack          []int

		// レポートIDごとのビット位置（Input/Featureで独立）
		inputBits   = map[byte]int{}
		featureBits = map[byte]int{}
	)

	clearLocals := func() {
		usages = nil
		usageMin, usageMax = 0, 0
		haveRange = false
	}

	addField := func(flags uint32, input bool) {
		bits := featureBits
		if input {
			bits = inputBits
		}
		f := Field{
			ReportID:   reportID,
			Collection: collection,
			UsagePage:  usagePage,
			UsageMin:   usageMin,
			BitOffset:  bits[reportID],
			BitSize:    reportSize,
			Count:      reportCnt,
			LogicalMin: logicalMin,
			LogicalMax: logicalMax,
			Constant:   flags&0x01 != 0,
			Variable:   flags&0x02 != 0,
			Input:      input,
		}
		if haveRange {
			for u := usageMin; u <= usageMax && len(f.Usages) < reportCnt; u++ {
				f.Usages = append(f.Usages, u)
			}
		} else {
			f.Usages = append(f.Usages, usages...)
		}
		// Variableでusageが足りない場合は最後のusageが繰り返される
		if f.Variable {
			for len(f.Usages) < reportCnt && len(f.Usages) > 0 {
				f.Usages = append(f.Usages, f.Usages[len(f.Usages)-1])
			}
		}
		bits[reportID] += reportSize * reportCnt
		caps.Fields = append(caps.Fields, f)
	}

	i := 0
	for i < len(desc) {
		prefix := desc[i]

		if prefix == longItemPrefix {
			if i+2 >= len(desc) {
				break
			}
			dataSize := int(desc[i+1])
			i += 3 + dataSize
			continue
		}

		size := int(prefix & 0x03)
		if size == 3 {
			size = 4
		}
		if i+1+size > len(desc) {
			break
		}

		tag := prefix & 0xFC
		data := desc[i+1 : i+1+size]

		switch tag {
		case tagUsagePage:
			usagePage = uint16(itemValue(data))
		case tagUsage:
			usages = append(usages, uint16(itemValue(data)))
		case tagUsageMin:
			usageMin = uint16(itemValue(data))
			haveRange = true
		case tagUsageMax:
			usageMax = uint16(itemValue(data))
			haveRange = true
		case tagLogicalMin:
			logicalMin = itemValueSigned(data)
		case tagLogicalMax:
			logicalMax = itemValueSigned(data)
		case tagReportSize:
			reportSize = int(itemValue(data))
		case tagReportID:
			reportID = byte(itemValue(data))
		case tagReportCount:
			reportCnt = int(itemValue(data))
		case tagCollection:
			stack = append(stack, collection)
			collection = nextCollection
			nextCollection++
			clearLocals()
		case tagEndCollection:
			if len(stack) > 0 {
				collection = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			}
			clearLocals()
		case tagInput:
			addField(itemValue(data), true)
			clearLocals()
		case tagFeature:
			addField(itemValue(data), false)
			clearLocals()
		}

		i += 1 + size
	}

	// Contact Count Maximum（Digitizerページ 0x55）から最大同時接触数を決める
	for _, f := range caps.Fields {
		if f.UsagePage == UsagePageDigitizer && hasUsage(f.Usages, UsageContactCountMax) {
			if f.LogicalMax > 0 {
				caps.MaxContacts = f.LogicalMax
			}
			break
		}
	}

	return caps
}

func hasUsage(usages []uint16, usage uint16) bool {
	for _, u := range usages {
		if u == usage {
			return true
		}
	}
	return false
}

// UsageValue は指定レポートから(ページ, コレクション, Usage)の値を取り出す。
// report[0]はレポートID。
func (c *ReportCaps) UsageValue(report []byte, page uint16, collection int, usage uint16) (int, bool) {
	if len(report) < 2 {
		return 0, false
	}
	for _, f := range c.Fields {
		if !f.Input || f.Constant || !f.Variable {
			continue
		}
		if f.ReportID != report[0] || f.UsagePage != page || f.Collection != collection {
			continue
		}
		for idx, u := range f.Usages {
			if u != usage {
				continue
			}
			raw := extractBits(report[1:], f.BitOffset+idx*f.BitSize, f.BitSize)
			value := int(raw)
			if f.LogicalMin < 0 {
				value = signExtend(raw, f.BitSize)
			}
			return value, true
		}
	}
	return 0, false
}

// UsageActive はボタン系Usageが立っているかを調べる。Variableなら該当ビット、
// Arrayなら各スロットの値をUsageへ変換して照合する。ボタンのUsageが
// 登録されていない場合はfalseを返す（値としての照合は呼び出し側で行う）。
func (c *ReportCaps) UsageActive(report []byte, page uint16, collection int, usage uint16) bool {
	if len(report) < 2 {
		return false
	}
	for _, f := range c.Fields {
		if !f.Input || f.Constant {
			continue
		}
		if f.ReportID != report[0] || f.UsagePage != page || f.Collection != collection {
			continue
		}
		if f.Variable {
			for idx, u := range f.Usages {
				if u != usage {
					continue
				}
				if extractBits(report[1:], f.BitOffset+idx*f.BitSize, f.BitSize) != 0 {
					return true
				}
			}
			continue
		}
		// Arrayアイテム: 各スロットの値が押下中のUsage番号を示す
		for idx := 0; idx < f.Count; idx++ {
			raw := extractBits(report[1:], f.BitOffset+idx*f.BitSize, f.BitSize)
			v := int(raw)
			if v < f.LogicalMin || v > f.LogicalMax {
				continue
			}
			if f.UsageMin+uint16(v-f.LogicalMin) == usage {
				return true
			}
		}
	}
	return false
}

// HasButtonUsage は指定コレクションにボタンページのUsageが登録されているかを返す
func (c *ReportCaps) HasButtonUsage(reportID byte, collection int) bool {
	for _, f := range c.Fields {
		if f.Input && !f.Constant && f.ReportID == reportID &&
			f.UsagePage == UsagePageButton && f.Collection == collection {
			return true
		}
	}
	return false
}

// ButtonCollections は指定レポートでボタンページを宣言しているコレクション一覧を返す
func (c *ReportCaps) ButtonCollections(reportID byte) []int {
	var cols []int
	seen := map[int]bool{}
	for _, f := range c.Fields {
		if f.Input && !f.Constant && f.ReportID == reportID && f.UsagePage == UsagePageButton {
			if !seen[f.Collection] {
				seen[f.Collection] = true
				cols = append(cols, f.Collection)
			}
		}
	}
	return cols
}

// extractBits はリトルエンディアンのビット列からbitLenビットを取り出す
func extractBits(data []byte, bitOff, bitLen int) uint32 {
	var v uint32
	for i := 0; i < bitLen; i++ {
		pos := bitOff + i
		byteIdx := pos / 8
		bitIdx := pos % 8
		if byteIdx >= len(data) {
			break
		}
		if data[byteIdx]&(1<<bitIdx) != 0 {
			v |= 1 << i
		}
	}
	return v
}

// signExtend はbitLenビットの値を符号拡張する
func signExtend(v uint32, bitLen int) int {
	if bitLen <= 0 || bitLen >= 32 {
		return int(int32(v))
	}
	if v&(1<<(bitLen-1)) != 0 {
		v |= ^uint32(0) << bitLen
	}
	return int(int32(v))
}
