package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	ENV_PREFIX = "IMPORTER"

	CONFIG_FILE                     = "Config_File"
	DEV                             = "Dev"
	IMPORT_DISABLED                 = "Import_Disabled"
	WAIT_JOB_START                  = "Wait_Job_Start"
	IMPORT_CRON                     = "Import_Cron"
	TIMEZONE                        = "Timezone"
	PROFILE                         = "Enable_Profile"
	MONITORING_LISTEN_ADDR          = "Monitoring_Listen_Addr"
	HTTP_SHUTDOWN_TIMEOUT           = "HTTP_Shutdown_Timeout"
	RUN_LOCK_IMPL                   = "Run_Lock_Impl"
	RUN_LOCK_KEY                    = "Run_Lock_Key"
	RUN_LOCK_TTL                    = "Run_Lock_TTL"
	REDIS_ADDR                      = "Redis_Addr"
	REDIS_PASSWORD                  = "Redis_Password"
	REDIS_DB                        = "Redis_DB"
	DATABASE_IMPL                   = "Database_Impl"
	DATABASE_HOST                   = "Database_Host"
	DATABASE_PORT                   = "Database_Port"
	DATABASE_USER                   = "Database_User"
	DATABASE_PASSWORD               = "Database_Password"
	DATABASE_NAME                   = "Database_Name"
	DATABASE_SSL_MODE               = "Database_SSL_Mode"
	DATABASE_SSL_ROOT_CERT          = "Database_SSL_Root_Cert"
	DATABASE_PATH                   = "Database_Path"
	DATABASE_QUERY_TIMEOUT          = "Database_Query_Timeout"
	GATEWAY_URL                     = "Gateway_Url"
	GATEWAY_TIMEOUT                 = "Gateway_Timeout"
	GATEWAY_DAILY_DAYS              = "Gateway_Daily_Days"
	GATEWAY_DETAIL_DAYS             = "Gateway_Detail_Days"
	GATEWAY_CALENDAR_CACHE_TTL      = "Gateway_Calendar_Cache_TTL"
	MQTT_ENABLE                     = "Mqtt_Enable"
	MQTT_BROKER_ADDRESS             = "Mqtt_Broker_Address"
	MQTT_CLIENT_ID                  = "Mqtt_Client_Id"
	MQTT_USERNAME                   = "Mqtt_Username"
	MQTT_PASSWORD                   = "Mqtt_Password"
	MQTT_PREFIX                     = "Mqtt_Prefix"
	MQTT_QOS                        = "Mqtt_QoS"
	MQTT_RETAIN                     = "Mqtt_Retain"
	MQTT_CA_CERT                    = "Mqtt_CA_Cert"
	MQTT_CLIENT_CERT                = "Mqtt_Client_Cert"
	MQTT_CLIENT_KEY                 = "Mqtt_Client_Key"
	MQTT_TLS_SKIP_VERIFY            = "Mqtt_TLS_Skip_Verify"
	MQTT_PUBLISH_TIMEOUT            = "Mqtt_Publish_Timeout"
	HOME_ASSISTANT_ENABLE           = "Home_Assistant_Enable"
	HOME_ASSISTANT_DISCOVERY_PREFIX = "Home_Assistant_Discovery_Prefix"
	HOME_ASSISTANT_WS_ENABLE        = "Home_Assistant_Ws_Enable"
	HOME_ASSISTANT_WS_URL           = "Home_Assistant_Ws_Url"
	HOME_ASSISTANT_WS_TOKEN         = "Home_Assistant_Ws_Token"
	INFLUXDB_ENABLE                 = "Influxdb_Enable"
	INFLUXDB_URL                    = "Influxdb_Url"
	INFLUXDB_TOKEN                  = "Influxdb_Token"
	INFLUXDB_ORG                    = "Influxdb_Org"
	INFLUXDB_BUCKET                 = "Influxdb_Bucket"
	RUN_REPORTER_IMPL               = "Run_Reporter_Impl"
	KAFKA_BROKERS                   = "Kafka_Brokers"
	KAFKA_RUN_REPORT_TOPIC          = "Kafka_Run_Report_Topic"
	KAFKA_BATCH_SIZE                = "Kafka_Batch_Size"
	KAFKA_BATCH_BYTES               = "Kafka_Batch_Bytes"
	KAFKA_USERNAME                  = "Kafka_Username"
	KAFKA_PASSWORD                  = "Kafka_Password"
	KAFKA_SASL_MECHANISM            = "Kafka_SASL_Mechanism"
	KAFKA_CA                        = "Kafka_CA"
	USAGE_POINTS                    = "myelectricaldata"

	DEFAULT_GATEWAY_URL = "https://www.myelectricaldata.fr"
)

// UsagePointConfig is one entry of the myelectricaldata section of the config file
type UsagePointConfig struct {
	Name                 string  `mapstructure:"name"`
	Enable               bool    `mapstructure:"enable"`
	Token                string  `mapstructure:"token" validate:"required_if=Enable true"`
	Cache                bool    `mapstructure:"cache"`
	Consumption          bool    `mapstructure:"consumption"`
	ConsumptionDetail    bool    `mapstructure:"consumption_detail"`
	Production           bool    `mapstructure:"production"`
	ProductionDetail     bool    `mapstructure:"production_detail"`
	ConsumptionPriceBase float64 `mapstructure:"consumption_price_base" validate:"gte=0"`
	TempoPriceBlue       float64 `mapstructure:"tempo_price_blue" validate:"gte=0"`
	TempoPriceWhite      float64 `mapstructure:"tempo_price_white" validate:"gte=0"`
	TempoPriceRed        float64 `mapstructure:"tempo_price_red" validate:"gte=0"`
}

type Config struct {
	ConfigFile                   string
	Dev                          bool
	ImportDisabled               bool
	WaitJobStart                 time.Duration
	ImportCron                   string `validate:"required"`
	Timezone                     string `validate:"required"`
	Profile                      bool
	MonitoringListenAddr         string
	HttpShutdownTimeout          time.Duration
	RunLockImpl                  string `validate:"oneof=process redis"`
	RunLockKey                   string
	RunLockTTL                   time.Duration
	RedisAddr                    string `validate:"required_if=RunLockImpl redis"`
	RedisPassword                string
	RedisDB                      int
	DatabaseImpl                 string `validate:"oneof=postgres sqlite"`
	DatabaseHost                 string
	DatabasePort                 int
	DatabaseUser                 string
	DatabasePassword             string
	DatabaseName                 string
	DatabaseSslMode              string
	DatabaseSslRootCert          string
	DatabasePath                 string
	DatabaseQueryTimeout         time.Duration
	GatewayUrl                   string `validate:"required,url"`
	GatewayTimeout               time.Duration
	GatewayDailyDays             int `validate:"gt=0"`
	GatewayDetailDays            int `validate:"gt=0"`
	GatewayCalendarCacheTTL      time.Duration
	MqttEnable                   bool
	MqttBrokerAddress            string `validate:"required_if=MqttEnable true"`
	MqttClientID                 string
	MqttUsername                 string
	MqttPassword                 string
	MqttPrefix                   string
	MqttQoS                      byte `validate:"lte=2"`
	MqttRetain                   bool
	MqttCACert                   string
	MqttClientCert               string
	MqttClientKey                string
	MqttTlsSkipVerify            bool
	MqttPublishTimeout           time.Duration
	HomeAssistantEnable          bool
	HomeAssistantDiscoveryPrefix string
	HomeAssistantWsEnable        bool
	HomeAssistantWsUrl           string `validate:"required_if=HomeAssistantWsEnable true"`
	HomeAssistantWsToken         string `validate:"required_if=HomeAssistantWsEnable true"`
	InfluxdbEnable               bool
	InfluxdbUrl                  string `validate:"required_if=InfluxdbEnable true"`
	InfluxdbToken                string
	InfluxdbOrg                  string
	InfluxdbBucket               string `validate:"required_if=InfluxdbEnable true"`
	RunReporterImpl              string `validate:"oneof=kafka fake"`
	KafkaBrokers                 []string
	KafkaRunReportTopic          string
	KafkaBatchSize               int
	KafkaBatchBytes              int
	KafkaUsername                string
	KafkaPassword                string
	KafkaSASLMechanism           string
	KafkaCA                      string
	UsagePoints                  map[string]UsagePointConfig `validate:"dive"`

	loadError error
}

func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", CONFIG_FILE, c.ConfigFile)
	fmt.Fprintf(&b, "%s: %t\n", DEV, c.Dev)
	fmt.Fprintf(&b, "%s: %t\n", IMPORT_DISABLED, c.ImportDisabled)
	fmt.Fprintf(&b, "%s: %s\n", WAIT_JOB_START, c.WaitJobStart)
	fmt.Fprintf(&b, "%s: %s\n", IMPORT_CRON, c.ImportCron)
	fmt.Fprintf(&b, "%s: %s\n", TIMEZONE, c.Timezone)
	fmt.Fprintf(&b, "%s: %t\n", PROFILE, c.Profile)
	fmt.Fprintf(&b, "%s: %s\n", MONITORING_LISTEN_ADDR, c.MonitoringListenAddr)
	fmt.Fprintf(&b, "%s: %s\n", RUN_LOCK_IMPL, c.RunLockImpl)
	fmt.Fprintf(&b, "%s: %s\n", RUN_LOCK_TTL, c.RunLockTTL)
	fmt.Fprintf(&b, "%s: %s\n", REDIS_ADDR, c.RedisAddr)
	fmt.Fprintf(&b, "%s: %s\n", DATABASE_IMPL, c.DatabaseImpl)
	fmt.Fprintf(&b, "%s: %s\n", DATABASE_HOST, c.DatabaseHost)
	fmt.Fprintf(&b, "%s: %d\n", DATABASE_PORT, c.DatabasePort)
	fmt.Fprintf(&b, "%s: %s\n", DATABASE_NAME, c.DatabaseName)
	fmt.Fprintf(&b, "%s: %s\n", DATABASE_PATH, c.DatabasePath)
	fmt.Fprintf(&b, "%s: %s\n", GATEWAY_URL, c.GatewayUrl)
	fmt.Fprintf(&b, "%s: %s\n", GATEWAY_TIMEOUT, c.GatewayTimeout)
	fmt.Fprintf(&b, "%s: %d\n", GATEWAY_DAILY_DAYS, c.GatewayDailyDays)
	fmt.Fprintf(&b, "%s: %d\n", GATEWAY_DETAIL_DAYS, c.GatewayDetailDays)
	fmt.Fprintf(&b, "%s: %t\n", MQTT_ENABLE, c.MqttEnable)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_BROKER_ADDRESS, c.MqttBrokerAddress)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_PREFIX, c.MqttPrefix)
	fmt.Fprintf(&b, "%s: %d\n", MQTT_QOS, c.MqttQoS)
	fmt.Fprintf(&b, "%s: %t\n", MQTT_RETAIN, c.MqttRetain)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_CA_CERT, c.MqttCACert)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_CLIENT_CERT, c.MqttClientCert)
	fmt.Fprintf(&b, "%s: %t\n", MQTT_TLS_SKIP_VERIFY, c.MqttTlsSkipVerify)
	fmt.Fprintf(&b, "%s: %t\n", HOME_ASSISTANT_ENABLE, c.HomeAssistantEnable)
	fmt.Fprintf(&b, "%s: %t\n", HOME_ASSISTANT_WS_ENABLE, c.HomeAssistantWsEnable)
	fmt.Fprintf(&b, "%s: %s\n", HOME_ASSISTANT_WS_URL, c.HomeAssistantWsUrl)
	fmt.Fprintf(&b, "%s: %t\n", INFLUXDB_ENABLE, c.InfluxdbEnable)
	fmt.Fprintf(&b, "%s: %s\n", INFLUXDB_URL, c.InfluxdbUrl)
	fmt.Fprintf(&b, "%s: %s\n", INFLUXDB_BUCKET, c.InfluxdbBucket)
	fmt.Fprintf(&b, "%s: %s\n", RUN_REPORTER_IMPL, c.RunReporterImpl)
	fmt.Fprintf(&b, "%s: %s\n", KAFKA_BROKERS, c.KafkaBrokers)
	fmt.Fprintf(&b, "%s: %s\n", KAFKA_RUN_REPORT_TOPIC, c.KafkaRunReportTopic)

	ids := make([]string, 0, len(c.UsagePoints))
	for id := range c.UsagePoints {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		up := c.UsagePoints[id]
		fmt.Fprintf(&b, "%s.%s: enable=%t consumption=%t consumption_detail=%t production=%t production_detail=%t token=%s\n",
			USAGE_POINTS, id, up.Enable, up.Consumption, up.ConsumptionDetail, up.Production, up.ProductionDetail, maskSecret(up.Token))
	}

	return b.String()
}

// ImportEnabled reports whether scheduled and manual imports may run
func (c *Config) ImportEnabled() bool {
	return !c.Dev && !c.ImportDisabled
}

// Validate reports config file read errors and invalid settings
func (c *Config) Validate() error {
	if c.loadError != nil {
		return fmt.Errorf("read config file %s: %w", c.ConfigFile, c.loadError)
	}
	return validator.New().Struct(c)
}

func GetConfig() *Config {
	options := viper.New()

	options.SetDefault(CONFIG_FILE, "")
	options.SetDefault(DEV, false)
	options.SetDefault(IMPORT_DISABLED, false)
	options.SetDefault(WAIT_JOB_START, 10)
	options.SetDefault(IMPORT_CRON, "0 */4 * * *")
	options.SetDefault(TIMEZONE, "Europe/Paris")
	options.SetDefault(PROFILE, false)
	options.SetDefault(MONITORING_LISTEN_ADDR, ":8081")
	options.SetDefault(HTTP_SHUTDOWN_TIMEOUT, 2)
	options.SetDefault(RUN_LOCK_IMPL, "process")
	options.SetDefault(RUN_LOCK_KEY, "myelectricaldata:import:lock")
	options.SetDefault(RUN_LOCK_TTL, 3600)
	options.SetDefault(REDIS_ADDR, "")
	options.SetDefault(REDIS_PASSWORD, "")
	options.SetDefault(REDIS_DB, 0)
	options.SetDefault(DATABASE_IMPL, "sqlite")
	options.SetDefault(DATABASE_HOST, "localhost")
	options.SetDefault(DATABASE_PORT, 5432)
	options.SetDefault(DATABASE_USER, "myelectricaldata")
	options.SetDefault(DATABASE_PASSWORD, "")
	options.SetDefault(DATABASE_NAME, "myelectricaldata")
	options.SetDefault(DATABASE_SSL_MODE, "disable")
	options.SetDefault(DATABASE_SSL_ROOT_CERT, "")
	options.SetDefault(DATABASE_PATH, "/data/myelectricaldata.db")
	options.SetDefault(DATABASE_QUERY_TIMEOUT, 5)
	options.SetDefault(GATEWAY_URL, DEFAULT_GATEWAY_URL)
	options.SetDefault(GATEWAY_TIMEOUT, 60)
	options.SetDefault(GATEWAY_DAILY_DAYS, 365)
	options.SetDefault(GATEWAY_DETAIL_DAYS, 7)
	options.SetDefault(GATEWAY_CALENDAR_CACHE_TTL, 3600)
	options.SetDefault(MQTT_ENABLE, false)
	options.SetDefault(MQTT_BROKER_ADDRESS, "tcp://localhost:1883")
	options.SetDefault(MQTT_CLIENT_ID, "myelectricaldata")
	options.SetDefault(MQTT_USERNAME, "")
	options.SetDefault(MQTT_PASSWORD, "")
	options.SetDefault(MQTT_PREFIX, "myelectricaldata")
	options.SetDefault(MQTT_QOS, 0)
	options.SetDefault(MQTT_RETAIN, true)
	options.SetDefault(MQTT_CA_CERT, "")
	options.SetDefault(MQTT_CLIENT_CERT, "")
	options.SetDefault(MQTT_CLIENT_KEY, "")
	options.SetDefault(MQTT_TLS_SKIP_VERIFY, false)
	options.SetDefault(MQTT_PUBLISH_TIMEOUT, 5)
	options.SetDefault(HOME_ASSISTANT_ENABLE, false)
	options.SetDefault(HOME_ASSISTANT_DISCOVERY_PREFIX, "homeassistant")
	options.SetDefault(HOME_ASSISTANT_WS_ENABLE, false)
	options.SetDefault(HOME_ASSISTANT_WS_URL, "ws://localhost:8123/api/websocket")
	options.SetDefault(HOME_ASSISTANT_WS_TOKEN, "")
	options.SetDefault(INFLUXDB_ENABLE, false)
	options.SetDefault(INFLUXDB_URL, "http://localhost:8086")
	options.SetDefault(INFLUXDB_TOKEN, "")
	options.SetDefault(INFLUXDB_ORG, "myelectricaldata")
	options.SetDefault(INFLUXDB_BUCKET, "myelectricaldata")
	options.SetDefault(RUN_REPORTER_IMPL, "fake")
	options.SetDefault(KAFKA_BROKERS, []string{})
	options.SetDefault(KAFKA_RUN_REPORT_TOPIC, "myelectricaldata.import.runs")
	options.SetDefault(KAFKA_BATCH_SIZE, 10)
	options.SetDefault(KAFKA_BATCH_BYTES, 1048576)
	options.SetDefault(KAFKA_USERNAME, "")
	options.SetDefault(KAFKA_PASSWORD, "")
	options.SetDefault(KAFKA_SASL_MECHANISM, "plain")
	options.SetDefault(KAFKA_CA, "")

	options.SetEnvPrefix(ENV_PREFIX)
	options.AutomaticEnv()

	var loadError error
	if configFile := options.GetString(CONFIG_FILE); configFile != "" {
		options.SetConfigFile(configFile)
		loadError = options.ReadInConfig()
	}

	usagePoints := make(map[string]UsagePointConfig)
	if err := options.UnmarshalKey(USAGE_POINTS, &usagePoints); err != nil && loadError == nil {
		loadError = err
	}

	return &Config{
		ConfigFile:                   options.GetString(CONFIG_FILE),
		Dev:                          options.GetBool(DEV),
		ImportDisabled:               options.GetBool(IMPORT_DISABLED),
		WaitJobStart:                 options.GetDuration(WAIT_JOB_START) * time.Second,
		ImportCron:                   options.GetString(IMPORT_CRON),
		Timezone:                     options.GetString(TIMEZONE),
		Profile:                      options.GetBool(PROFILE),
		MonitoringListenAddr:         options.GetString(MONITORING_LISTEN_ADDR),
		HttpShutdownTimeout:          options.GetDuration(HTTP_SHUTDOWN_TIMEOUT) * time.Second,
		RunLockImpl:                  options.GetString(RUN_LOCK_IMPL),
		RunLockKey:                   options.GetString(RUN_LOCK_KEY),
		RunLockTTL:                   options.GetDuration(RUN_LOCK_TTL) * time.Second,
		RedisAddr:                    options.GetString(REDIS_ADDR),
		RedisPassword:                options.GetString(REDIS_PASSWORD),
		RedisDB:                      options.GetInt(REDIS_DB),
		DatabaseImpl:                 options.GetString(DATABASE_IMPL),
		DatabaseHost:                 options.GetString(DATABASE_HOST),
		DatabasePort:                 options.GetInt(DATABASE_PORT),
		DatabaseUser:                 options.GetString(DATABASE_USER),
		DatabasePassword:             options.GetString(DATABASE_PASSWORD),
		DatabaseName:                 options.GetString(DATABASE_NAME),
		DatabaseSslMode:              options.GetString(DATABASE_SSL_MODE),
		DatabaseSslRootCert:          options.GetString(DATABASE_SSL_ROOT_CERT),
		DatabasePath:                 options.GetString(DATABASE_PATH),
		DatabaseQueryTimeout:         options.GetDuration(DATABASE_QUERY_TIMEOUT) * time.Second,
		GatewayUrl:                   strings.TrimSuffix(options.GetString(GATEWAY_URL), "/"),
		GatewayTimeout:               options.GetDuration(GATEWAY_TIMEOUT) * time.Second,
		GatewayDailyDays:             options.GetInt(GATEWAY_DAILY_DAYS),
		GatewayDetailDays:            options.GetInt(GATEWAY_DETAIL_DAYS),
		GatewayCalendarCacheTTL:      options.GetDuration(GATEWAY_CALENDAR_CACHE_TTL) * time.Second,
		MqttEnable:                   options.GetBool(MQTT_ENABLE),
		MqttBrokerAddress:            options.GetString(MQTT_BROKER_ADDRESS),
		MqttClientID:                 options.GetString(MQTT_CLIENT_ID),
		MqttUsername:                 options.GetString(MQTT_USERNAME),
		MqttPassword:                 options.GetString(MQTT_PASSWORD),
		MqttPrefix:                   options.GetString(MQTT_PREFIX),
		MqttQoS:                      byte(options.GetUint(MQTT_QOS)),
		MqttRetain:                   options.GetBool(MQTT_RETAIN),
		MqttCACert:                   options.GetString(MQTT_CA_CERT),
		MqttClientCert:               options.GetString(MQTT_CLIENT_CERT),
		MqttClientKey:                options.GetString(MQTT_CLIENT_KEY),
		MqttTlsSkipVerify:            options.GetBool(MQTT_TLS_SKIP_VERIFY),
		MqttPublishTimeout:           options.GetDuration(MQTT_PUBLISH_TIMEOUT) * time.Second,
		HomeAssistantEnable:          options.GetBool(HOME_ASSISTANT_ENABLE),
		HomeAssistantDiscoveryPrefix: options.GetString(HOME_ASSISTANT_DISCOVERY_PREFIX),
		HomeAssistantWsEnable:        options.GetBool(HOME_ASSISTANT_WS_ENABLE),
		HomeAssistantWsUrl:           options.GetString(HOME_ASSISTANT_WS_URL),
		HomeAssistantWsToken:         options.GetString(HOME_ASSISTANT_WS_TOKEN),
		InfluxdbEnable:               options.GetBool(INFLUXDB_ENABLE),
		InfluxdbUrl:                  options.GetString(INFLUXDB_URL),
		InfluxdbToken:                options.GetString(INFLUXDB_TOKEN),
		InfluxdbOrg:                  options.GetString(INFLUXDB_ORG),
		InfluxdbBucket:               options.GetString(INFLUXDB_BUCKET),
		RunReporterImpl:              options.GetString(RUN_REPORTER_IMPL),
		KafkaBrokers:                 options.GetStringSlice(KAFKA_BROKERS),
		KafkaRunReportTopic:          options.GetString(KAFKA_RUN_REPORT_TOPIC),
		KafkaBatchSize:               options.GetInt(KAFKA_BATCH_SIZE),
		KafkaBatchBytes:              options.GetInt(KAFKA_BATCH_BYTES),
		KafkaUsername:                options.GetString(KAFKA_USERNAME),
		KafkaPassword:                options.GetString(KAFKA_PASSWORD),
		KafkaSASLMechanism:           options.GetString(KAFKA_SASL_MECHANISM),
		KafkaCA:                      options.GetString(KAFKA_CA),
		UsagePoints:                  usagePoints,
		loadError:                    loadError,
	}
}

func maskSecret(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}
