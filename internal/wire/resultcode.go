package wire

// ResultCode is an RFC 4511 enumerated LDAPResult result code.
type ResultCode int64

const (
	ResultSuccess                ResultCode = 0
	ResultOperationsError        ResultCode = 1
	ResultProtocolError          ResultCode = 2
	ResultTimeLimitExceeded      ResultCode = 3
	ResultSizeLimitExceeded      ResultCode = 4
	ResultCompareFalse           ResultCode = 5
	ResultCompareTrue            ResultCode = 6
	ResultAuthMethodNotSupported ResultCode = 7
	ResultNoSuchObject           ResultCode = 32
	ResultUnwillingToPerform     ResultCode = 53
	ResultOther                  ResultCode = 80
)

// Application-class tags for the LDAPMessage protocolOp CHOICE, per
// RFC 4511 section 4.2.
const (
	ApplicationBindRequest           = 0
	ApplicationBindResponse          = 1
	ApplicationUnbindRequest         = 2
	ApplicationSearchRequest         = 3
	ApplicationSearchResultEntry     = 4
	ApplicationSearchResultDone      = 5
	ApplicationModifyRequest         = 6
	ApplicationModifyResponse        = 7
	ApplicationAddRequest            = 8
	ApplicationAddResponse           = 9
	ApplicationDelRequest            = 10
	ApplicationDelResponse           = 11
	ApplicationModifyDNRequest       = 12
	ApplicationModifyDNResponse      = 13
	ApplicationCompareRequest        = 14
	ApplicationCompareResponse       = 15
	ApplicationAbandonRequest        = 16
	ApplicationSearchResultReference = 19
	ApplicationExtendedRequest       = 23
	ApplicationExtendedResponse      = 24
)
