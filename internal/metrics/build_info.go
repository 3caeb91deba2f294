package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegisterBuildInfo публикует oms_build_info со значением 1 и сведениями
// о сборке в метках. Повторная регистрация переиспользует вектор.
func RegisterBuildInfo(registerer prometheus.Registerer, service, version, commit string) {
	info := register(registerer, "oms_build_info", prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "oms_build_info",
		Help: "Build information of the running service",
	}, []string{"service", "version", "commit"}))
	info.WithLabelValues(service, version, commit).Set(1)
}
