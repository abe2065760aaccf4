package gtypes

import "encoding/json"

// MessageKind tags the Message sum type (§3).
type MessageKind int

const (
	MsgConfigure MessageKind = iota
	MsgTransfer
	MsgUpload
	MsgInstantiate
	MsgExecute
	MsgMigrate
)

func (k MessageKind) String() string {
	switch k {
	case MsgConfigure:
		return "configure"
	case MsgTransfer:
		return "transfer"
	case MsgUpload:
		return "upload"
	case MsgInstantiate:
		return "instantiate"
	case MsgExecute:
		return "execute"
	case MsgMigrate:
		return "migrate"
	default:
		return "unknown"
	}
}

// Message is the unit of on-chain action (§3). Exactly one of the embedded
// pointers is non-nil, selected by Kind. Modeled as a struct-of-options
// rather than an interface so (de)serialization to the tagged-object JSON
// schema in §6 is straightforward.
type Message struct {
	Kind MessageKind

	Configure   *MsgConfigureData
	Transfer    *MsgTransferData
	Upload      *MsgUploadData
	Instantiate *MsgInstantiateData
	Execute     *MsgExecuteData
	Migrate     *MsgMigrateData
}

type MsgConfigureData struct {
	NewConfig    *Config
	NewAppConfig *AppConfig
}

type MsgTransferData struct {
	To    Address
	Coins Coins
}

type MsgUploadData struct {
	Bytecode []byte
}

type MsgInstantiateData struct {
	CodeHash Hash
	Msg      json.RawMessage
	Salt     []byte
	Funds    Coins
	Admin    *Address
	Label    *string
}

type MsgExecuteData struct {
	Contract Address
	Msg      json.RawMessage
	Funds    Coins
}

type MsgMigrateData struct {
	Contract    Address
	NewCodeHash Hash
	Msg         json.RawMessage
}

func NewConfigureMsg(cfg *Config, appCfg *AppConfig) Message {
	return Message{Kind: MsgConfigure, Configure: &MsgConfigureData{NewConfig: cfg, NewAppConfig: appCfg}}
}

func NewTransferMsg(to Address, coins Coins) Message {
	return Message{Kind: MsgTransfer, Transfer: &MsgTransferData{To: to, Coins: coins}}
}

func NewUploadMsg(bytecode []byte) Message {
	return Message{Kind: MsgUpload, Upload: &MsgUploadData{Bytecode: bytecode}}
}

func NewInstantiateMsg(codeHash Hash, msg json.RawMessage, salt []byte, funds Coins, admin *Address, label *string) Message {
	return Message{Kind: MsgInstantiate, Instantiate: &MsgInstantiateData{
		CodeHash: codeHash, Msg: msg, Salt: salt, Funds: funds, Admin: admin, Label: label,
	}}
}

func NewExecuteMsg(contract Address, msg json.RawMessage, funds Coins) Message {
	return Message{Kind: MsgExecute, Execute: &MsgExecuteData{Contract: contract, Msg: msg, Funds: funds}}
}

func NewMigrateMsg(contract Address, newCodeHash Hash, msg json.RawMessage) Message {
	return Message{Kind: MsgMigrate, Migrate: &MsgMigrateData{Contract: contract, NewCodeHash: newCodeHash, Msg: msg}}
}

// Tx is a transaction (§3).
type Tx struct {
	Sender     Address
	GasLimit   uint64
	Msgs       []Message // NonEmpty<Vec<Message>>: Validate rejects an empty list
	Data       json.RawMessage
	Credential json.RawMessage
}

func (tx Tx) Validate() error {
	if len(tx.Msgs) == 0 {
		return ErrEmptyMsgs
	}
	return nil
}
