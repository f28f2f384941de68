package ws

// Metrics 监控接口
type Metrics interface {
	// 连接指标
	IncrementConnections()
	DecrementConnections()
	SetConnectionCount(count int)

	// 消息指标
	IncrementMessageCount(msgType string)
	IncrementInvalidMessages()

	// 房间指标
	SetRoomCount(count int)

	// 投递指标
	IncrementDeliveryFailures()
	IncrementSweepExpired(kind string, count int)
}

// NoopMetrics 空实现（默认）
type NoopMetrics struct{}

func (m *NoopMetrics) IncrementConnections()                        {}
func (m *NoopMetrics) DecrementConnections()                        {}
func (m *NoopMetrics) SetConnectionCount(count int)                 {}
func (m *NoopMetrics) IncrementMessageCount(msgType string)         {}
func (m *NoopMetrics) IncrementInvalidMessages()                    {}
func (m *NoopMetrics) SetRoomCount(count int)                       {}
func (m *NoopMetrics) IncrementDeliveryFailures()                   {}
func (m *NoopMetrics) IncrementSweepExpired(kind string, count int) {}
