package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net" //cloudwatch

	"github.com/aws/aws-sdk-go-v2/aws"                              //cloudwatch
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types" //cloudwatch
)

type channelStat struct {
	messages int64
	bytes    int64
}

// Counters split by pipeline: "scan" is the scheduled full-population scan,
// "stream" is the live activity feed in between scans.
var (
	errorsScan      int64
	errorsStream    int64
	warnsScan       int64
	warnsStream     int64
	scanReads       int64
	activityReads   int64
	s3ReportWrites  int64
	kafkaPubs       int64
	customersScored int64
	retries         int64
	channels        sync.Map // map[string]*channelStat
)

func IncrementRetryCount() {
	atomic.AddInt64(&retries, 1)
}

func recordWarn(component string) {
	if strings.Contains(component, "stream") {
		atomic.AddInt64(&warnsStream, 1)
	} else if strings.Contains(component, "scan") || strings.Contains(component, "scorer") {
		atomic.AddInt64(&warnsScan, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "stream") {
		atomic.AddInt64(&errorsStream, 1)
	} else if strings.Contains(component, "scan") || strings.Contains(component, "scorer") {
		atomic.AddInt64(&errorsScan, 1)
	}
}

func IncrementScanRead(size int) {
	atomic.AddInt64(&scanReads, 1)
	recordChannel("crm_scan", size)
}

func IncrementActivityRead(size int) {
	atomic.AddInt64(&activityReads, 1)
	recordChannel("activity_stream", size)
}

func IncrementS3ReportWrite(size int64) {
	atomic.AddInt64(&s3ReportWrites, 1)
	recordChannel("s3_report_write", int(size))
}

func IncrementKafkaPublish(size int) {
	atomic.AddInt64(&kafkaPubs, 1)
	recordChannel("kafka_proposal_publish", size)
}

func AddCustomersScored(n int) {
	atomic.AddInt64(&customersScored, int64(n))
}

func RecordChannelMessage(name string, size int) {
	recordChannel(name, size)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and pipeline statistics.
// It exposes the internal startReport function for use by other packages.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	netStats, _ := gnet.IOCounters(false)
	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors_scan":      atomic.LoadInt64(&errorsScan),
		"errors_stream":    atomic.LoadInt64(&errorsStream),
		"warns_scan":       atomic.LoadInt64(&warnsScan),
		"warns_stream":     atomic.LoadInt64(&warnsStream),
		"scan_reads":       atomic.LoadInt64(&scanReads),
		"activity_reads":   atomic.LoadInt64(&activityReads),
		"s3_report_writes": atomic.LoadInt64(&s3ReportWrites),
		"kafka_publishes":  atomic.LoadInt64(&kafkaPubs),
		"customers_scored": atomic.LoadInt64(&customersScored),
		"retries":          atomic.LoadInt64(&retries),
		"goroutines":       runtime.NumGoroutine(),
		"cpu_percent":      cpuPct,
		"memory_mb":        int64(memStats.Used) / 1024 / 1024,
		"disk_mb":          int64(diskStats.Used) / 1024 / 1024,
		"channels":         channelData,
		"net_bytes_sent":   int64(bytesSent),
		"net_bytes_recv":   int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("ChurnFlow-CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("ChurnFlow-MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("ChurnFlow-DiskMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(diskStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("ChurnFlow-ErrorsScan"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_scan"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ChurnFlow-ErrorsStream"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_stream"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ChurnFlow-WarnsScan"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_scan"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ChurnFlow-WarnsStream"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_stream"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ChurnFlow-ScanReads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["scan_reads"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ChurnFlow-ActivityReads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["activity_reads"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ChurnFlow-S3ReportWrites"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["s3_report_writes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ChurnFlow-KafkaPublishes"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["kafka_publishes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ChurnFlow-CustomersScored"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["customers_scored"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ChurnFlow-NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		cwtypes.MetricDatum{MetricName: aws.String("ChurnFlow-NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	)

	for name, stats := range channelData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("ChurnFlow-ChannelMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("ChurnFlow-ChannelBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
