// Package chain verifies on-chain USDC payments on Base L2.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/botique-hub/internal/config"
	hverrors "github.com/botique-hub/internal/errors"
	"github.com/botique-hub/internal/logging"
)

// Verifier confirms that an on-chain transaction settles a job's price to
// the expected recipient wallet.
type Verifier interface {
	// VerifyPayment returns nil when txHash is a mined, successful
	// transaction containing a USDC transfer of at least amountUSDC (base
	// units) to recipient. Any other condition is a
	// PAYMENT_VERIFICATION_FAILED error.
	VerifyPayment(ctx context.Context, txHash, amountUSDC, recipient string) error
}

// transferTopic is the topic hash of the ERC-20 Transfer event.
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// BaseVerifier verifies USDC transfers on Base via JSON-RPC. A secondary
// endpoint, when configured, is dialed lazily on primary network failure.
type BaseVerifier struct {
	client       *ethclient.Client
	secondaryURL string
	usdcContract common.Address
	timeout      time.Duration
}

// NewBaseVerifier creates a verifier from chain configuration
func NewBaseVerifier(cfg *config.ChainConfig) (*BaseVerifier, error) {
	if cfg.RPCPrimary == "" {
		return nil, fmt.Errorf("primary RPC endpoint is required")
	}
	if !common.IsHexAddress(cfg.USDCContract) {
		return nil, fmt.Errorf("invalid USDC contract address: %s", cfg.USDCContract)
	}

	client, err := ethclient.Dial(cfg.RPCPrimary)
	if err != nil {
		return nil, fmt.Errorf("failed to dial primary RPC: %w", err)
	}

	return &BaseVerifier{
		client:       client,
		secondaryURL: cfg.RPCSecondary,
		usdcContract: common.HexToAddress(cfg.USDCContract),
		timeout:      cfg.VerifyTimeout,
	}, nil
}

// VerifyPayment implements Verifier
func (v *BaseVerifier) VerifyPayment(ctx context.Context, txHash, amountUSDC, recipient string) error {
	if len(txHash) != 66 || !strings.HasPrefix(txHash, "0x") {
		return hverrors.NewPaymentVerificationError("malformed transaction hash", nil)
	}
	if !common.IsHexAddress(recipient) {
		return hverrors.NewPaymentVerificationError("malformed recipient address", nil)
	}

	expected, ok := new(big.Int).SetString(amountUSDC, 10)
	if !ok || expected.Sign() <= 0 {
		return hverrors.NewPaymentVerificationError("invalid expected amount", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	receipt, err := v.transactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if err == ethereum.NotFound {
			return hverrors.NewPaymentVerificationError("transaction not found on chain", err)
		}
		return hverrors.NewPaymentVerificationError("failed to fetch transaction receipt", err)
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return hverrors.NewPaymentVerificationError("transaction reverted", nil)
	}

	return v.checkTransferLogs(receipt, common.HexToAddress(recipient), expected)
}

// transactionReceipt fetches the receipt, failing over to the secondary
// endpoint once on a network-level error.
func (v *BaseVerifier) transactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	receipt, err := v.client.TransactionReceipt(ctx, hash)
	if err == nil || err == ethereum.NotFound || v.secondaryURL == "" {
		return receipt, err
	}

	logging.FromContext(ctx).WithError(err).Warn("Primary RPC failed, trying secondary")

	secondary, dialErr := ethclient.Dial(v.secondaryURL)
	if dialErr != nil {
		return nil, err
	}
	defer secondary.Close()

	return secondary.TransactionReceipt(ctx, hash)
}

// checkTransferLogs scans receipt logs for a USDC Transfer to the recipient
// covering at least the expected amount.
func (v *BaseVerifier) checkTransferLogs(receipt *ethtypes.Receipt, recipient common.Address, expected *big.Int) error {
	var sawTransfer bool

	for _, logEntry := range receipt.Logs {
		if logEntry.Address != v.usdcContract {
			continue
		}
		if len(logEntry.Topics) != 3 || logEntry.Topics[0] != transferTopic {
			continue
		}
		sawTransfer = true

		// Topics: [signature, from, to]; value is in the data field.
		to := common.BytesToAddress(logEntry.Topics[2].Bytes())
		if to != recipient {
			continue
		}

		value := new(big.Int).SetBytes(logEntry.Data)
		if value.Cmp(expected) >= 0 {
			return nil
		}

		return hverrors.NewPaymentVerificationError(
			fmt.Sprintf("underpaid: got %s, expected %s", value.String(), expected.String()), nil)
	}

	if sawTransfer {
		return hverrors.NewPaymentVerificationError("payment sent to wrong address", nil)
	}
	return hverrors.NewPaymentVerificationError("no USDC transfer in transaction", nil)
}

// Close releases the underlying RPC connection
func (v *BaseVerifier) Close() {
	if v.client != nil {
		v.client.Close()
	}
}
