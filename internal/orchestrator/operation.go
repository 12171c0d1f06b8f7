package orchestrator

// Operation is a backend request kind: a response product built from a data source or a show lookup.
type Operation string

// Products.
const (
	DAP      Operation = "dap"
	DMR      Operation = "dmr"
	DDS      Operation = "dds"
	DAS      Operation = "das"
	DDX      Operation = "ddx"
	DataDDX  Operation = "dataddx"
	DODS     Operation = "dods"
	Stream   Operation = "stream"
	ASCII    Operation = "ascii"
	CSV      Operation = "csv"
	HTMLForm Operation = "html_form"
	InfoPage Operation = "info_page"
	XMLData  Operation = "xml_data"
	NetCDF   Operation = "netcdf"
	NetCDF4  Operation = "netcdf-4"
	GeoTIFF  Operation = "geotiff"
	JPEG2000 Operation = "jpeg2000"
	JSON     Operation = "json"
	CovJSON  Operation = "covjson"
	IJSON    Operation = "ijson"
	W10n     Operation = "w10n"
)

// Show lookups. They run without container setup.
const (
	ShowVersion  Operation = "showVersion"
	ShowCatalog  Operation = "showCatalog"
	ShowNode     Operation = "showNode"
	ShowInfo     Operation = "showInfo"
	ShowPathInfo Operation = "showPathInfo"
	ShowBesKey   Operation = "showBesKey"
	SiteMap      Operation = "siteMap"
)

var products = map[Operation]struct{}{
	DAP: {}, DMR: {}, DDS: {}, DAS: {}, DDX: {}, DataDDX: {}, DODS: {}, Stream: {}, ASCII: {}, CSV: {},
	HTMLForm: {}, InfoPage: {}, XMLData: {}, NetCDF: {}, NetCDF4: {}, GeoTIFF: {}, JPEG2000: {},
	JSON: {}, CovJSON: {}, IJSON: {}, W10n: {},
}

var shows = map[Operation]string{
	ShowVersion:  "show version;",
	ShowCatalog:  `show catalog for "%s";`,
	ShowNode:     `show node for "%s";`,
	ShowInfo:     `show info for "%s";`,
	ShowPathInfo: `show pathInfo for "%s";`,
	ShowBesKey:   "show besKey %s;",
	SiteMap:      `show siteMap for "%s";`,
}

func (op Operation) IsProduct() bool {
	_, ok := products[op]
	return ok
}

func (op Operation) IsShow() bool {
	_, ok := shows[op]
	return ok
}

func (op Operation) Valid() bool { return op.IsProduct() || op.IsShow() }

func (op Operation) String() string { return string(op) }

// Params tunes a product request. The zero value asks for the plain product.
type Params struct {
	// Constraint is the DAP constraint expression applied to the container.
	Constraint string
	// XDAPAccept overrides the protocol version sent to the backend.
	XDAPAccept string
	// ReturnAs asks the backend to encode the product, e.g. "netcdf".
	ReturnAs string
	// StoreResult is the service URL for asynchronous responses; XMLBase goes with it.
	StoreResult string
	XMLBase     string
	// ExplicitContainers switches the dap_explicit_containers context.
	ExplicitContainers *bool
	// CFHistory is appended to the CF history attribute of file responses.
	CFHistory string
	// Prefix routes lookups whose argument is not a path (showBesKey). Defaults to "/".
	Prefix string
}
