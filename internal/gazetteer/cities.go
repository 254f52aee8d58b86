package gazetteer

// slovenianCities is the reference corpus for stop detection. Short names are
// the codes field staff use in route strings.
var slovenianCities = []City{
	{Name: "Ljubljana", ShortName: "lj", Lat: 46.0569, Lng: 14.5058},
	{Name: "Maribor", ShortName: "mb", Lat: 46.5547, Lng: 15.6459},
	{Name: "Celje", ShortName: "ce", Lat: 46.2397, Lng: 15.2677},
	{Name: "Kranj", ShortName: "kr", Lat: 46.2389, Lng: 14.3556},
	{Name: "Koper", ShortName: "kp", Lat: 45.5481, Lng: 13.7302},
	{Name: "Novo mesto", ShortName: "nm", Lat: 45.8011, Lng: 15.1710},
	{Name: "Velenje", ShortName: "ve", Lat: 46.3592, Lng: 15.1103},
	{Name: "Nova Gorica", ShortName: "ng", Lat: 45.9560, Lng: 13.6483},
	{Name: "Ptuj", ShortName: "pt", Lat: 46.4200, Lng: 15.8700},
	{Name: "Murska Sobota", ShortName: "ms", Lat: 46.6625, Lng: 16.1664},
	{Name: "Kamnik", ShortName: "ka", Lat: 46.2259, Lng: 14.6121},
	{Name: "Jesenice", ShortName: "je", Lat: 46.4300, Lng: 14.0600},
	{Name: "Domžale", ShortName: "dm", Lat: 46.1372, Lng: 14.5937},
	{Name: "Škofja Loka", ShortName: "sl", Lat: 46.1655, Lng: 14.3064},
	{Name: "Trbovlje", ShortName: "tr", Lat: 46.1550, Lng: 15.0533},
	{Name: "Slovenj Gradec", ShortName: "sg", Lat: 46.5103, Lng: 15.0806},
	{Name: "Postojna", ShortName: "po", Lat: 45.7749, Lng: 14.2136},
	{Name: "Krško", ShortName: "kk", Lat: 45.9590, Lng: 15.4920},
	{Name: "Brežice", ShortName: "br", Lat: 45.9033, Lng: 15.5911},
	{Name: "Izola", ShortName: "iz", Lat: 45.5390, Lng: 13.6600},
	{Name: "Piran", ShortName: "pi", Lat: 45.5283, Lng: 13.5683},
	{Name: "Vrhnika", ShortName: "vr", Lat: 45.9633, Lng: 14.2936},
	{Name: "Kočevje", ShortName: "kc", Lat: 45.6431, Lng: 14.8633},
	{Name: "Ajdovščina", ShortName: "aj", Lat: 45.8864, Lng: 13.9092},
	{Name: "Grosuplje", ShortName: "gr", Lat: 45.9556, Lng: 14.6589},
	{Name: "Litija", ShortName: "li", Lat: 46.0581, Lng: 14.8303},
	{Name: "Zagorje ob Savi", ShortName: "za", Lat: 46.1342, Lng: 14.9969},
	{Name: "Radovljica", ShortName: "ra", Lat: 46.3444, Lng: 14.1744},
	{Name: "Bled", ShortName: "bl", Lat: 46.3683, Lng: 14.1146},
	{Name: "Tolmin", ShortName: "tl", Lat: 46.1833, Lng: 13.7333},
	{Name: "Sežana", ShortName: "se", Lat: 45.7092, Lng: 13.8733},
	{Name: "Ilirska Bistrica", ShortName: "ib", Lat: 45.5678, Lng: 14.2406},
	{Name: "Črnomelj", ShortName: "cr", Lat: 45.5711, Lng: 15.1889},
	{Name: "Slovenska Bistrica", ShortName: "sb", Lat: 46.3922, Lng: 15.5744},
	{Name: "Ljutomer", ShortName: "lt", Lat: 46.5208, Lng: 16.1975},
	{Name: "Lendava", ShortName: "le", Lat: 46.5631, Lng: 16.4519},
	{Name: "Gornja Radgona", ShortName: "gra", Lat: 46.6733, Lng: 15.9922},
	{Name: "Ravne na Koroškem", ShortName: "rk", Lat: 46.5439, Lng: 14.9692},
	{Name: "Žalec", ShortName: "zl", Lat: 46.2517, Lng: 15.1650},
	{Name: "Rogaška Slatina", ShortName: "rs", Lat: 46.2372, Lng: 15.6397},
	{Name: "Šentjur", ShortName: "sj", Lat: 46.2172, Lng: 15.3975},
	{Name: "Idrija", ShortName: "id", Lat: 46.0028, Lng: 14.0306},
	{Name: "Logatec", ShortName: "lo", Lat: 45.9144, Lng: 14.2258},
	{Name: "Ribnica", ShortName: "ri", Lat: 45.7386, Lng: 14.7275},
}
