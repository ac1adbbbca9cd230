package metrics

// NoopCollector is a no-op implementation of the Collector interface.
// All methods are empty stubs that do nothing.
type NoopCollector struct{}

func (n *NoopCollector) ConnectionOpened(protocol string)             {}
func (n *NoopCollector) ConnectionClosed(protocol string)             {}
func (n *NoopCollector) TLSConnectionEstablished(protocol string)     {}
func (n *NoopCollector) CompressionEstablished(protocol string)       {}
func (n *NoopCollector) AuthAttempt(protocol, mechanism string, success bool) {}
func (n *NoopCollector) CommandProcessed(protocol, command string)    {}
func (n *NoopCollector) CommandIgnored(protocol, command string)      {}
func (n *NoopCollector) CommandHidden(protocol, command string)       {}
func (n *NoopCollector) CommandOverridden(protocol, command string)   {}
