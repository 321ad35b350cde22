package metrics

// Label 指标标签，值应保持低基数（不要使用 service_id 之类的唯一值）
type Label struct {
	Key   string
	Value string
}

// L 创建 Label
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}
