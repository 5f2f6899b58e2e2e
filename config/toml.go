package config

const BridgeConfigTemplate = `db_host = "{{ .DbHost }}"
db_port = {{ .DbPort }}
db_username = "{{ .DbUsername }}"
db_password = "{{ .DbPassword }}"
db_schema = "{{ .DbSchema }}"

server_port = {{ .ServerPort }}
host_chain = "{{ .HostChain }}"
withdraw_delay_secs = {{ .WithdrawDelaySecs }}
fee_endpoint = "{{ .FeeEndpoint }}"
fee_recipient_address = "{{ .FeeRecipientAddress }}"

approver_address = "{{ .ApproverAddress }}"
canceler_address = "{{ .CancelerAddress }}"
operator_address = "{{ .OperatorAddress }}"

[chains]{{ range $k, $v := .Chains }}
	[chains.{{ $k }}]
	chain = "{{ $k }}"
	family = "{{ $v.Family }}"
	chain_id = "{{ $v.ChainId }}"
	block_time = {{ $v.BlockTime }}
	adjust_time = {{ $v.AdjustTime }}
	starting_block = {{ $v.StartingBlock }}
	confirmations = {{ $v.Confirmations }}
	rpcs = [{{ range $v.Rpcs }}"{{ . }}", {{ end }}]
	bridge_address = "{{ $v.BridgeAddress }}"
	bridge_url = "{{ $v.BridgeUrl }}"
{{ end }}
[tokens]{{ range $k, $v := .Tokens }}
	[tokens.{{ $k }}]
	address = "{{ $v.Address }}"
	bridge_type = "{{ $v.BridgeType }}"
	fee = "{{ $v.Fee }}"
	deduct_from_amount = {{ $v.DeductFromAmount }}
	max_per_transaction = "{{ $v.MaxPerTransaction }}"
	max_per_period = "{{ $v.MaxPerPeriod }}"
{{ end }}
`
